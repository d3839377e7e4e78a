// Package output renders a built offset map to disk.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v2"

	"SigMap/offsets"
)

// Format is an output file type. Its value is also the file extension.
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
	HPP  Format = "hpp"
)

var formats = []Format{JSON, YAML, HPP}

// ParseFormat accepts a format name, ignoring case. "yml" is an alias of yaml.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "yml" {
		return YAML, nil
	}
	f := Format(name)
	if !lo.Contains(formats, f) {
		return "", errors.Errorf("unknown output format %q", s)
	}
	return f, nil
}

// ParseFormats parses every name and drops repeats.
func ParseFormats(names []string) ([]Format, error) {
	out := make([]Format, 0, len(names))
	for _, n := range names {
		f, err := ParseFormat(n)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return lo.Uniq(out), nil
}

// Write renders m to w.
func Write(w io.Writer, format Format, m *offsets.Map) error {
	switch format {
	case JSON:
		data, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return errors.WithStack(err)
		}
		data = append(data, '\n')
		_, err = w.Write(data)
		return errors.WithStack(err)
	case YAML:
		data, err := yaml.Marshal(m)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = w.Write(data)
		return errors.WithStack(err)
	case HPP:
		return writeHeader(w, m)
	}
	return errors.Errorf("unknown output format %q", format)
}

// WriteFiles writes offsets.<ext> for each format into dir and returns the
// paths written.
func WriteFiles(dir string, formats []Format, m *offsets.Map) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.WithStack(err)
	}

	paths := make([]string, 0, len(formats))
	for _, f := range formats {
		path := filepath.Join(dir, "offsets."+string(f))
		if err := writeFile(path, f, m); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, f Format, m *offsets.Map) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := Write(file, f, m); err != nil {
		file.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.WithStack(file.Close())
}

func writeHeader(w io.Writer, m *offsets.Map) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "#pragma once")
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "#include <cstddef>")
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "namespace sigmap {")
	fmt.Fprintln(bw, "    namespace offsets {")
	for i, name := range m.Modules() {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		mod, _ := m.Module(name)
		fmt.Fprintf(bw, "        // Module: %s\n", name)
		fmt.Fprintf(bw, "        namespace %s {\n", identifier(name))
		for _, off := range mod.Offsets() {
			fmt.Fprintf(bw, "            constexpr std::ptrdiff_t %s = 0x%X;\n", off.Name, off.RVA)
		}
		fmt.Fprintln(bw, "        }")
	}
	fmt.Fprintln(bw, "    }")
	fmt.Fprintln(bw, "}")
	return errors.WithStack(bw.Flush())
}

// identifier turns a module file name into a C++ namespace name.
func identifier(module string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return '_'
	}, module)
}
