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

package log

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LogPrefix  = "[go-diract]"
	HelpLevels = "Must be one of: error, warning, info, debug."
)

const (
	DefaultMaxSizeMB  = 50
	DefaultMaxBackups = 5
	DefaultMaxAgeDays = 28
)

var levelMapping = map[string]zerolog.Level{
	"error":   zerolog.ErrorLevel,
	"warning": zerolog.WarnLevel,
	"info":    zerolog.InfoLevel,
	"debug":   zerolog.DebugLevel,
}

type Logger struct {
	zerolog.Logger
	out io.Writer
}

var logger = newLogger(os.Stderr, zerolog.InfoLevel)

func newLogger(out io.Writer, level zerolog.Level) *Logger {
	console := zerolog.ConsoleWriter{
		Out:        out,
		NoColor:    true,
		TimeFormat: time.RFC3339,
		FormatMessage: func(i interface{}) string {
			if i == nil {
				return LogPrefix
			}
			return LogPrefix + " " + i.(string)
		},
	}
	return &Logger{
		Logger: zerolog.New(console).Level(level).With().Timestamp().Logger(),
		out:    out,
	}
}

func SetLevel(strLevel string) error {
	level, ok := levelMapping[strLevel]
	if !ok {
		return errors.New("Wrong log level. " + HelpLevels)
	}
	logger.Logger = logger.Logger.Level(level)
	return nil
}

func Init(out io.Writer, strLevel string) {
	level, ok := levelMapping[strLevel]
	if !ok {
		panic(errors.New("Wrong log level. " + HelpLevels))
	}
	logger = newLogger(out, level)
}

// InitFile writes log lines both to out and to a rotated file at path.
func InitFile(out io.Writer, strLevel, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    DefaultMaxSizeMB,
		MaxBackups: DefaultMaxBackups,
		MaxAge:     DefaultMaxAgeDays,
		Compress:   true,
	}
	level, ok := levelMapping[strLevel]
	if !ok {
		return errors.New("Wrong log level. " + HelpLevels)
	}
	logger = newLogger(io.MultiWriter(out, rotator), level)
	return nil
}

// Writer returns the sink log lines are written to.
func Writer() io.Writer {
	return logger.out
}

// DebugEnabled tells whether debug lines are written. Check it before
// building expensive debug arguments.
func DebugEnabled() bool {
	return logger.GetLevel() <= zerolog.DebugLevel
}

func Error(format string, v ...interface{}) {
	logger.Error().Msgf(format, v...)
}

func Warning(format string, v ...interface{}) {
	logger.Warn().Msgf(format, v...)
}

func Info(format string, v ...interface{}) {
	logger.Info().Msgf(format, v...)
}

func Debug(format string, v ...interface{}) {
	logger.Debug().Msgf(format, v...)
}
