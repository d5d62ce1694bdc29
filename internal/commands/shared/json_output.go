// Copyright 2025 Tom Barlow
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

package shared

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/tombee/remlink/internal/cli/format"
	"github.com/tombee/remlink/internal/jq"
)

// TextFunc renders a decoded result for --text output.
type TextFunc func(data any) string

// Printer writes command results to stdout as indented JSON, as text, or
// through a jq filter.
type Printer struct {
	Out  io.Writer
	Text bool
	JQ   string

	executor *jq.Executor
}

// NewPrinter creates a printer from the global output flags.
func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{
		Out:      out,
		Text:     GetText(),
		JQ:       GetJQ(),
		executor: jq.NewExecutor(jq.DefaultTimeout, jq.DefaultMaxInputSize),
	}
}

// Print writes data. With a jq filter the filtered value is printed as JSON,
// or raw when it is a string and text output is on. Otherwise text mode uses
// render, falling back to key: value lines when render is nil.
func (p *Printer) Print(ctx context.Context, data any, render TextFunc) error {
	if p.JQ != "" {
		return p.printFiltered(ctx, data)
	}

	if !p.Text {
		out, err := format.FormatJSON(data)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(p.Out, out)
		return err
	}

	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	if render == nil {
		render = KeyValueText
	}
	_, err = fmt.Fprintln(p.Out, render(decoded))
	return err
}

func (p *Printer) printFiltered(ctx context.Context, data any) error {
	executor := p.executor
	if executor == nil {
		executor = jq.NewExecutor(jq.DefaultTimeout, jq.DefaultMaxInputSize)
	}

	var (
		filtered any
		err      error
	)
	if raw, ok := data.(json.RawMessage); ok {
		filtered, err = executor.Apply(ctx, p.JQ, raw)
	} else {
		filtered, err = executor.Execute(ctx, p.JQ, data)
	}
	if err != nil {
		return NewFailureError("jq filter failed", err)
	}

	if s, ok := filtered.(string); ok && p.Text {
		_, err = fmt.Fprintln(p.Out, s)
		return err
	}
	out, err := format.FormatJSON(filtered)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.Out, out)
	return err
}

// Decode turns a result into plain JSON values: maps, slices, strings,
// float64, bool and nil.
func Decode(data any) (any, error) {
	var raw []byte
	switch v := data.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to encode result: %w", err)
		}
		raw = encoded
	}

	if len(raw) == 0 {
		return nil, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return out, nil
}

// KeyValueText renders an object as sorted "key: value" lines. Nested values
// are shown as compact JSON and non-objects as their scalar text.
func KeyValueText(data any) string {
	obj, ok := data.(map[string]any)
	if !ok {
		return Scalar(data)
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+": "+Scalar(obj[k]))
	}
	return strings.Join(lines, "\n")
}

// Scalar renders a single decoded JSON value as text.
func Scalar(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

// Field returns obj[key] rendered as text, or "" when it is absent or null.
func Field(obj map[string]any, key string) string {
	v, ok := obj[key]
	if !ok || v == nil {
		return ""
	}
	return Scalar(v)
}
