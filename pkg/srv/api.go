/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package srv

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-openapi/loads"
	"github.com/go-openapi/runtime/middleware"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"jinr.ru/greenlab/go-diract/pkg/config"
	"jinr.ru/greenlab/go-diract/pkg/diract"
	"jinr.ru/greenlab/go-diract/pkg/layers"
	"jinr.ru/greenlab/go-diract/pkg/log"
)

//go:embed swagger.json
var swaggerJSON []byte

const shutdownTimeout = 5 * time.Second

type ApiServer struct {
	context.Context
	*config.Config
	*mux.Router
	archive *Archive
	stats   func() diract.Stats
	doc     *loads.Document
}

// NewApiServer creates the API server. stats may be nil when no decoder runs
// in this process.
func NewApiServer(ctx context.Context, cfg *config.Config, archive *Archive, stats func() diract.Stats) (*ApiServer, error) {
	log.Info("Initializing API server with address: %s", cfg.ApiAddr())

	doc, err := loads.Analyzed(swaggerJSON, "")
	if err != nil {
		return nil, fmt.Errorf("load API document: %w", err)
	}

	s := &ApiServer{
		Context: ctx,
		Config:  cfg,
		archive: archive,
		stats:   stats,
		doc:     doc,
	}
	s.configureRouter()
	return s, nil
}

// Run serves until the context is done
func (s *ApiServer) Run() error {
	log.Info("Starting API server: address: %s", s.Config.ApiAddr())
	httpServer := &http.Server{
		Handler: handlers.LoggingHandler(log.Writer(), s.Router),
		Addr:    s.Config.ApiAddr(),
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.ListenAndServe()
	}()

	select {
	case <-s.Context.Done():
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			return err
		}
		return s.Context.Err()
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *ApiServer) configureRouter() {
	s.Router = mux.NewRouter()
	subRouter := s.Router.PathPrefix("/api").Subrouter()
	subRouter.HandleFunc("/proximity", s.handleProximityList()).Methods("GET")
	subRouter.HandleFunc("/proximity/{instance}", s.handleProximityGet()).Methods("GET")
	subRouter.HandleFunc("/digests/{instance}", s.handleDigestList()).Methods("GET")
	subRouter.HandleFunc("/stats", s.handleStats()).Methods("GET")
	s.Router.HandleFunc("/swagger.json", s.handleSwagger()).Methods("GET")
	s.Router.Handle("/docs", middleware.Redoc(middleware.RedocOpts{
		BasePath: "/",
		Path:     "docs",
		SpecURL:  "/swagger.json",
		Title:    s.doc.Spec().Info.Title,
	}, http.NotFoundHandler())).Methods("GET")
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("Error while encoding response: %s", err)
	}
}

func writeArchiveError(w http.ResponseWriter, err error) {
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusBadGateway)
}

func instanceVar(w http.ResponseWriter, r *http.Request) (layers.InstanceID, bool) {
	instanceID, err := layers.ParseInstanceID(mux.Vars(r)["instance"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, false
	}
	return instanceID, true
}

func (s *ApiServer) handleProximityList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug("Handling proximity list request")
		reports, err := s.archive.AllProximity()
		if err != nil {
			writeArchiveError(w, err)
			return
		}
		writeJSON(w, reports)
	}
}

func (s *ApiServer) handleProximityGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instanceID, ok := instanceVar(w, r)
		if !ok {
			return
		}
		log.Debug("Handling proximity request: instance: %s", instanceID)
		report, err := s.archive.GetProximity(instanceID)
		if err != nil {
			writeArchiveError(w, err)
			return
		}
		writeJSON(w, report)
	}
}

func (s *ApiServer) handleDigestList() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instanceID, ok := instanceVar(w, r)
		if !ok {
			return
		}
		log.Debug("Handling digest list request: instance: %s", instanceID)
		digests, err := s.archive.Digests(instanceID)
		if err != nil {
			writeArchiveError(w, err)
			return
		}
		writeJSON(w, digests)
	}
}

func (s *ApiServer) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := diract.Stats{}
		if s.stats != nil {
			stats = s.stats()
		}
		writeJSON(w, stats)
	}
}

func (s *ApiServer) handleSwagger() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(s.doc.Raw())
	}
}
