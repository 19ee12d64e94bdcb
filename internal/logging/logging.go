// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logging builds the zap loggers used by the command line tools.
// Library packages default to a no-op logger and receive one of these
// through their SetLogger functions.
package logging

import (
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects the log sinks.
type Config struct {
	// Console receives human readable output. Defaults to os.Stderr.
	Console io.Writer
	// SessionLog, when set, is a file that receives every debug entry as JSON
	// regardless of the console level.
	SessionLog string
	// Debug lowers the console level from warn to debug.
	Debug bool
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     func(t time.Time, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(t.Format("15:04:05.000")) },
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

// New returns a logger for cfg and a function that flushes and closes its
// sinks.
func New(cfg Config) (*zap.Logger, func() error) {
	console := cfg.Console
	if console == nil {
		console = os.Stderr
	}

	level := zapcore.WarnLevel
	if cfg.Debug {
		level = zapcore.DebugLevel
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig()), zapcore.AddSync(console), level),
	}

	var session *lumberjack.Logger
	if cfg.SessionLog != "" {
		session = &lumberjack.Logger{
			Filename:   cfg.SessionLog,
			MaxSize:    10,
			MaxBackups: 3,
		}
		fileCfg := encoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(session), zapcore.DebugLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if session != nil {
		logSessionHeader(logger)
	}

	closeFn := func() error {
		_ = logger.Sync()
		if session != nil {
			return session.Close()
		}
		return nil
	}
	return logger, closeFn
}

func logSessionHeader(logger *zap.Logger) {
	fields := []zap.Field{
		zap.Int("pid", os.Getpid()),
		zap.String("os", runtime.GOOS+"/"+runtime.GOARCH),
		zap.String("go", runtime.Version()),
		zap.String("args", strings.Join(os.Args, " ")),
	}
	if exe, err := os.Executable(); err == nil {
		fields = append(fields, zap.String("exe", exe))
	}
	logger.Debug("session started", fields...)
}
