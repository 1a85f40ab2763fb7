// Package main provides the envelope CLI for inspecting bridge frames.
//
// Commands read a JSON frame from stdin and write JSON to stdout, which
// makes them easy to drive from counterpart test scripts.
//
// Usage:
//
//	# Classify a frame and report its type and id
//	echo '{"type":"event","event":"frame_changed","frame":3}' | bm-envelope decode
//
//	# Wrap a legacy message into an envelope (lossless)
//	echo '{"type":"event","event":"frame_changed","frame":3}' | bm-envelope wrap
//
//	# Restore the legacy message carried by an envelope
//	cat envelope.json | bm-envelope unwrap
//
//	# Split a property path into segments
//	bm-envelope tokenize "objects['Cube'].location[0]"
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/blendmate/bridge/coreengine/envelope"
	"github.com/blendmate/bridge/coreengine/pathres"
)

// Version information
const (
	Version   = "0.1.0"
	BuildTime = "2026-10-01"
)

// errReported marks failures already written to stdout as a JSON error.
var errReported = errors.New("reported")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bm-envelope",
		Short:         "Inspect and convert bridge frames",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(fmt.Sprintf("bm-envelope {{.Version}} (built %s, protocol v%d)\n", BuildTime, envelope.ProtocolVersion))

	root.AddCommand(
		&cobra.Command{
			Use:   "decode",
			Short: "Classify a frame read from stdin",
			Args:  cobra.NoArgs,
			RunE:  runDecode,
		},
		&cobra.Command{
			Use:   "wrap",
			Short: "Wrap a legacy message into an envelope",
			Args:  cobra.NoArgs,
			RunE:  runWrap,
		},
		&cobra.Command{
			Use:   "unwrap",
			Short: "Restore the legacy message carried by an envelope",
			Args:  cobra.NoArgs,
			RunE:  runUnwrap,
		},
		&cobra.Command{
			Use:   "tokenize <path>",
			Short: "Split a property path into segments",
			Args:  cobra.ExactArgs(1),
			RunE:  runTokenize,
		},
	)
	return root
}

// =============================================================================
// COMMANDS
// =============================================================================

func runDecode(cmd *cobra.Command, _ []string) error {
	env, legacy, err := readFrame(cmd)
	if err != nil {
		return err
	}

	if env != nil {
		_, wrapped := envelope.UnwrapLegacy(env)
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"framing":      "envelope",
			"version":      env.Version,
			"type":         env.Type,
			"id":           env.ID,
			"reply_to":     env.ReplyTo,
			"wraps_legacy": wrapped,
		})
	}
	return writeJSON(cmd.OutOrStdout(), map[string]any{
		"framing": "legacy",
		"type":    legacy.Type(),
		"id":      legacy["id"],
	})
}

func runWrap(cmd *cobra.Command, _ []string) error {
	env, legacy, err := readFrame(cmd)
	if err != nil {
		return err
	}
	if env != nil {
		return reportError(cmd, "already_envelope", "input is already envelope framed")
	}
	return writeJSON(cmd.OutOrStdout(), envelope.WrapLegacy(legacy))
}

func runUnwrap(cmd *cobra.Command, _ []string) error {
	env, _, err := readFrame(cmd)
	if err != nil {
		return err
	}
	if env == nil {
		return reportError(cmd, "not_envelope", "input is a legacy message")
	}
	original, ok := envelope.UnwrapLegacy(env)
	if !ok {
		return reportError(cmd, "no_legacy", fmt.Sprintf("envelope carries no %s key", envelope.LegacyKey))
	}
	return writeJSON(cmd.OutOrStdout(), original)
}

func runTokenize(cmd *cobra.Command, args []string) error {
	segs, err := pathres.Tokenize(args[0])
	if err != nil {
		var syntaxErr *pathres.SyntaxError
		if errors.As(err, &syntaxErr) {
			return reportError(cmd, "syntax_error", syntaxErr.Error())
		}
		return reportError(cmd, "tokenize_error", err.Error())
	}

	out := make([]map[string]any, 0, len(segs))
	for _, s := range segs {
		seg := map[string]any{"kind": s.Kind.String()}
		if s.Kind == pathres.SegmentIndex {
			seg["index"] = s.Index
		} else {
			seg["name"] = s.Name
		}
		out = append(out, seg)
	}
	return writeJSON(cmd.OutOrStdout(), map[string]any{
		"path":     pathres.Format(segs),
		"segments": out,
	})
}

// =============================================================================
// IO HELPERS
// =============================================================================

func readFrame(cmd *cobra.Command) (*envelope.Envelope, envelope.LegacyMessage, error) {
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return nil, nil, reportError(cmd, "read_error", err.Error())
	}
	env, legacy, err := envelope.Decode(data)
	if err != nil {
		return nil, nil, reportError(cmd, "parse_error", err.Error())
	}
	return env, legacy, nil
}

func writeJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// reportError writes an error object to stdout and returns errReported so
// the process exits non-zero.
func reportError(cmd *cobra.Command, code, message string) error {
	if err := writeJSON(cmd.OutOrStdout(), map[string]any{
		"error":   true,
		"code":    code,
		"message": message,
	}); err != nil {
		return err
	}
	return errReported
}
