// Package bundle loads contract artifacts: a .contract bundle, or a .wasm
// blob and its .json metadata.
package bundle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	clierr "github.com/ggonzalez94/contract-cli/internal/errors"
)

// Bundle holds the contract metadata and, when available, its code.
type Bundle struct {
	Name     string
	Metadata json.RawMessage
	Wasm     []byte
}

type document struct {
	Source struct {
		Wasm string `json:"wasm"`
	} `json:"source"`
	Contract struct {
		Name string `json:"name"`
	} `json:"contract"`
}

// Load reads the artifact at path. metadataPath overrides the metadata that
// would otherwise be found next to a .wasm file or inside a bundle. When
// path is empty the single bundle under ./target/ink is used.
func Load(path, metadataPath string) (*Bundle, error) {
	if strings.TrimSpace(path) == "" {
		found, err := discover(".")
		if err != nil {
			return nil, err
		}
		path = found
	}

	var b *Bundle
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".contract", ".json":
		b, err = loadDocument(path)
	case ".wasm":
		b, err = loadWasm(path, metadataPath)
	default:
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("unsupported contract artifact %q (expected .contract, .json or .wasm)", path))
	}
	if err != nil {
		return nil, err
	}
	if metadataPath != "" {
		buf, err := readJSON(metadataPath)
		if err != nil {
			return nil, err
		}
		b.Metadata = buf
	}
	return b, nil
}

func loadDocument(path string) (*Bundle, error) {
	buf, err := readJSON(path)
	if err != nil {
		return nil, err
	}
	var doc document
	if err := json.Unmarshal(buf, &doc); err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("parse %s", path), err)
	}
	b := &Bundle{Name: doc.Contract.Name, Metadata: buf}
	if doc.Source.Wasm != "" {
		wasm, err := hexutil.Decode(doc.Source.Wasm)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("decode source.wasm in %s", path), err)
		}
		b.Wasm = wasm
	} else if sibling := replaceExt(path, ".wasm"); fileExists(sibling) {
		wasm, err := os.ReadFile(sibling)
		if err != nil {
			return nil, clierr.Wrap(clierr.CodeUsage, "read contract code", err)
		}
		b.Wasm = wasm
	}
	if b.Name == "" {
		b.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return b, nil
}

func loadWasm(path, metadataPath string) (*Bundle, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, "read contract code", err)
	}
	b := &Bundle{Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), Wasm: wasm}
	if metadataPath != "" {
		return b, nil
	}
	for _, candidate := range []string{replaceExt(path, ".json"), filepath.Join(filepath.Dir(path), "metadata.json")} {
		if fileExists(candidate) {
			meta, err := readJSON(candidate)
			if err != nil {
				return nil, err
			}
			b.Metadata = meta
			return b, nil
		}
	}
	return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("no metadata found next to %s; pass --metadata", path))
}

func discover(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "target", "ink", "*.contract"))
	if err != nil {
		return "", clierr.Wrap(clierr.CodeInternal, "search contract bundles", err)
	}
	switch len(matches) {
	case 0:
		return "", clierr.New(clierr.CodeUsage, "no contract bundle found in ./target/ink; pass --file")
	case 1:
		return matches[0], nil
	default:
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("found %d contract bundles in ./target/ink; pass --file", len(matches)))
	}
}

func readJSON(path string) (json.RawMessage, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("read %s", path), err)
	}
	if !json.Valid(buf) {
		return nil, clierr.New(clierr.CodeUsage, fmt.Sprintf("%s is not valid JSON", path))
	}
	return json.RawMessage(buf), nil
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
