// Copyright 2026 The libiio Authors
// SPDX-License-Identifier: Apache-2.0

package local

import (
	"errors"
	"io/fs"

	"gopkg.in/ini.v1"

	"github.com/kimpaller/libiio/iio"
)

// contextAttrsSection is the INI section merged into the context.
const contextAttrsSection = "Context Attributes"

// populateContextAttrs merges the key/value pairs of the optional
// context-attributes file. A missing file, or a file without the
// section, is not an error.
func (b *backend) populateContextAttrs(ctx *iio.Context) error {
	cfg, err := ini.Load(b.configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	section, err := cfg.GetSection(contextAttrsSection)
	if err != nil {
		return nil
	}
	for _, key := range section.Keys() {
		ctx.AddAttr(key.Name(), key.Value())
	}
	return nil
}
