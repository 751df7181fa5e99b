package invoke

import (
	"encoding/hex"
	"fmt"
)

// ModuleError names an error declared by a runtime pallet.
type ModuleError struct {
	PalletIndex uint8    `json:"pallet_index"`
	ErrorIndex  uint8    `json:"error_index"`
	Pallet      string   `json:"pallet"`
	Error       string   `json:"error"`
	Docs        []string `json:"docs"`
}

// ChainMetadata is the subset of runtime metadata needed to name dispatch
// errors.
type ChainMetadata struct {
	errors map[[2]uint8]ModuleError
}

func NewChainMetadata(entries []ModuleError) *ChainMetadata {
	md := &ChainMetadata{errors: make(map[[2]uint8]ModuleError, len(entries))}
	for _, e := range entries {
		md.errors[[2]uint8{e.PalletIndex, e.ErrorIndex}] = e
	}
	return md
}

// DecodedError is a dispatch failure in renderable form. Module errors are
// resolved to pallet and error names; everything else is kept as a message.
type DecodedError struct {
	Module  *DecodedModuleError `json:"Module,omitempty"`
	Generic *GenericError       `json:"Generic,omitempty"`
}

// GenericError is any dispatch error that is not declared by a pallet.
type GenericError struct {
	Error string `json:"error"`
}

type DecodedModuleError struct {
	Pallet string   `json:"pallet"`
	Error  string   `json:"error"`
	Docs   []string `json:"docs"`
}

func (e DecodedError) String() string {
	if e.Module != nil {
		return fmt.Sprintf("ModuleError: %s::%s: %q", e.Module.Pallet, e.Module.Error, e.Module.Docs)
	}
	if e.Generic != nil {
		return e.Generic.Error
	}
	return ""
}

// Decode resolves a dispatch failure against the metadata. A nil receiver
// decodes without names.
func (m *ChainMetadata) Decode(f DispatchFailure) DecodedError {
	if f.Module == nil {
		if f.Other == "" {
			return generic("unknown dispatch error")
		}
		return generic(f.Other)
	}
	if m != nil {
		if e, ok := m.errors[[2]uint8{f.Module.Pallet, f.Module.Error[0]}]; ok {
			docs := e.Docs
			if docs == nil {
				docs = []string{}
			}
			return DecodedError{Module: &DecodedModuleError{Pallet: e.Pallet, Error: e.Error, Docs: docs}}
		}
	}
	return generic(fmt.Sprintf("Module error: pallet %d, error 0x%s", f.Module.Pallet, hex.EncodeToString(f.Module.Error[:])))
}

func generic(msg string) DecodedError {
	return DecodedError{Generic: &GenericError{Error: msg}}
}
