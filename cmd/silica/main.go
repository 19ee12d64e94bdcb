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

// Command silica reads and writes SiliCa system blocks through a PN532.
//
//	silica read err
//	silica read mac 05
//	silica write idm 1122334455667788
//	silica write ser 100B 200B
//	silica list
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	silica "github.com/ZaparooProject/go-silica"
	"github.com/ZaparooProject/go-silica/felica"
	"github.com/ZaparooProject/go-silica/internal/logging"
	"github.com/ZaparooProject/go-silica/pn532"
)

type config struct {
	command    silica.Command
	mode       string
	devicePath string
	logFile    string
	param      []byte
	target     felica.Target
	timeout    time.Duration
	wait       time.Duration
	debug      bool
	probe      bool
}

// errUsage is returned for malformed invocations after usage was printed.
var errUsage = errors.New("usage")

// deviceOpener opens and initializes the reader named by cfg.
type deviceOpener func(ctx context.Context, cfg *config) (*pn532.Device, error)

func usage(fs *flag.FlagSet) func() {
	return func() {
		out := fs.Output()
		_, _ = fmt.Fprintln(out, "Usage:")
		_, _ = fmt.Fprintln(out, "  silica [flags] read <command> [block]")
		_, _ = fmt.Fprintln(out, "  silica [flags] write <command> <hex>...")
		_, _ = fmt.Fprintln(out, "  silica [flags] list")
		_, _ = fmt.Fprintln(out, "\nRead commands: err, idm, sys, ser, dfc, mac <block>, or a plain hex block 00-FF (no 0x or h).")
		_, _ = fmt.Fprintln(out, "Write commands: idm, sys, ser, or a decimal block 0-11.")
		_, _ = fmt.Fprintln(out, "\nFlags:")
		fs.PrintDefaults()
	}
}

// parseArgs parses flags and validates the subcommand and its parameters.
// Nothing is opened here.
func parseArgs(args []string, stdout, stderr io.Writer) (*config, error) {
	fs := flag.NewFlagSet("silica", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = usage(fs)

	cfg := &config{}
	var target string
	fs.StringVar(&cfg.devicePath, "device", "", "Reader path, or pcsc:<reader name> (auto-detect if empty)")
	fs.StringVar(&target, "target", felica.Target212F.String(), "FeliCa target to poll: 212F or 424F")
	fs.DurationVar(&cfg.timeout, "timeout", silica.DefaultTimeout, "Timeout of a single tag command")
	fs.DurationVar(&cfg.wait, "wait", 0, "How long to wait for a tag (0 waits until interrupted)")
	fs.BoolVar(&cfg.debug, "debug", false, "Enable debug logging on stderr")
	fs.StringVar(&cfg.logFile, "log-file", "", "Write a JSON session log to this file")
	fs.BoolVar(&cfg.probe, "probe", false, "list: open candidate readers and ask for their firmware")

	if err := fs.Parse(args); err != nil {
		return nil, errUsage
	}

	if cfg.timeout <= 0 {
		_, _ = fmt.Fprintln(stdout, "Timeout must be positive")
		return nil, errUsage
	}

	t, err := felica.ParseTarget(target)
	if err != nil {
		_, _ = fmt.Fprintf(stdout, "Unknown target: %s\n", target)
		return nil, err
	}
	cfg.target = t

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return nil, errUsage
	}
	cfg.mode = rest[0]

	switch cfg.mode {
	case "list":
		return cfg, nil
	case "read":
		if len(rest) < 2 {
			fs.Usage()
			return nil, errUsage
		}
		cfg.command, err = silica.ParseReadCommand(rest[1], rest[2:]...)
	case "write":
		if len(rest) < 3 {
			fs.Usage()
			return nil, errUsage
		}
		// the parameter is checked before the command name
		cfg.param, err = silica.DecodeHex(rest[2:]...)
		if err == nil {
			cfg.command, err = silica.ParseWriteCommand(rest[1])
		}
		if err == nil {
			_, err = silica.BuildWritePayload(cfg.command, cfg.param)
		}
	default:
		fs.Usage()
		return nil, errUsage
	}
	if err != nil {
		_, _ = fmt.Fprintln(stdout, silica.Message(err))
		return nil, err
	}
	return cfg, nil
}

func setupLogging(cfg *config, stderr io.Writer) func() error {
	logger, closeFn := logging.New(logging.Config{
		Console:    stderr,
		SessionLog: cfg.logFile,
		Debug:      cfg.debug,
	})
	pn532.SetLogger(logger)
	felica.SetLogger(logger)
	logger.Debug("starting",
		zap.String("mode", cfg.mode),
		zap.String("device", cfg.devicePath),
		zap.Stringer("target", cfg.target))
	return closeFn
}

// waitForTag polls until a tag answers, the -wait deadline passes or ctx is
// cancelled.
func waitForTag(ctx context.Context, dev *pn532.Device, cfg *config, out io.Writer) (*felica.Tag, error) {
	_, _ = fmt.Fprintln(out, "Waiting for a FeliCa...")

	if cfg.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.wait)
		defer cancel()
	}

	tag, err := felica.Connect(ctx, dev, cfg.target)
	if err != nil {
		if errors.Is(err, silica.ErrNoTagFound) {
			_, _ = fmt.Fprintln(out, "No tag found")
		}
		return nil, err
	}
	_, _ = fmt.Fprintln(out, "Tag found:", tag)
	return tag, nil
}

func runRead(ctx context.Context, tag silica.Commander, cfg *config, out io.Writer) error {
	res, err := silica.Read(ctx, tag, cfg.command, silica.WithTimeout(cfg.timeout))
	if err != nil {
		if silica.IsTransport(err) {
			_, _ = fmt.Fprintf(out, "Unable to read block %02Xh. The tag might not be a SiliCa.\n",
				byte(cfg.command.Address()))
		} else {
			_, _ = fmt.Fprintln(out, "Error:", err)
		}
		return err
	}
	printResult(out, cfg.command, res)
	return nil
}

func printResult(out io.Writer, cmd silica.Command, res *silica.Result) {
	if res.Shape == silica.ShapeErrorLog {
		_, _ = fmt.Fprintln(out, "Last Error Command:", silica.FormatHex(res.LastError))
		return
	}

	_, _ = fmt.Fprintf(out, "Block %02Xh: %s\n", byte(cmd.Address()), silica.FormatHex(res.Block))
	switch cmd.Kind {
	case silica.KindMAC:
		_, _ = fmt.Fprintln(out, "MAC_A:", silica.FormatHex(res.MAC))
	case silica.KindIDm, silica.KindDeviceID:
		_, _ = fmt.Fprintln(out, "IDm:", silica.FormatHex(res.IDm()))
		_, _ = fmt.Fprintln(out, "PMm:", silica.FormatHex(res.PMm()))
	case silica.KindSystemCode:
		_, _ = fmt.Fprintln(out, "System codes:", formatCodes(res.SystemCodes()))
	case silica.KindServiceCode:
		_, _ = fmt.Fprintln(out, "Service codes:", formatCodes(res.ServiceCodes()))
	}
}

func formatCodes(codes []uint16) string {
	if len(codes) == 0 {
		return "(none)"
	}
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = fmt.Sprintf("%04X", c)
	}
	return strings.Join(parts, " ")
}

func runWrite(ctx context.Context, tag silica.Commander, cfg *config, out io.Writer) error {
	err := silica.Write(ctx, tag, cfg.command, cfg.param, silica.WithTimeout(cfg.timeout))
	if err != nil {
		if silica.IsTransport(err) {
			_, _ = fmt.Fprintf(out, "Unable to write to block %02Xh. The tag might not be a SiliCa.\n",
				byte(cfg.command.Address()))
		} else {
			_, _ = fmt.Fprintln(out, "Error:", err)
		}
		return err
	}
	_, _ = fmt.Fprintln(out, "Write completed")
	return nil
}

func run(ctx context.Context, cfg *config, open deviceOpener, out io.Writer) error {
	dev, err := open(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintln(out, "Error:", err)
		return err
	}
	defer func() {
		if err := dev.Close(); err != nil {
			pn532.Logger().Warnf("failed to close device: %v", err)
		}
	}()

	tag, err := waitForTag(ctx, dev, cfg, out)
	if err != nil {
		if !errors.Is(err, silica.ErrNoTagFound) {
			_, _ = fmt.Fprintln(out, "Error:", err)
		}
		return err
	}

	if cfg.mode == "write" {
		return runWrite(ctx, tag, cfg, out)
	}
	return runRead(ctx, tag, cfg, out)
}

func main() {
	os.Exit(mainWithExitCode(os.Args[1:], os.Stdout, os.Stderr))
}

func mainWithExitCode(args []string, stdout, stderr io.Writer) int {
	return execute(args, stdout, stderr, openDevice)
}

func execute(args []string, stdout, stderr io.Writer, open deviceOpener) int {
	cfg, err := parseArgs(args, stdout, stderr)
	if err != nil {
		return 1
	}

	closeLog := setupLogging(cfg, stderr)
	defer func() { _ = closeLog() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.mode == "list" {
		err = runList(ctx, cfg, stdout)
	} else {
		err = run(ctx, cfg, open, stdout)
	}
	if err != nil {
		return 1
	}
	return 0
}
