/*
 *	Copyright 2025 The barseq Authors
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package checkpoints implements checkpoint management: saving and loading of
// variable values for a context.Context.
//
// The main object is the Handler, created by calling Build, followed by the
// various options settings and finally calling Config.Done. Once created, if a
// previously saved checkpoint exists in the configured directory, its values
// are served to the Context on demand, as variables are initialized -- the
// Handler is the Context's Loader. Handler.Save() writes a new checkpoint at
// any time.
//
// Example:
//
//	ctx := context.New()
//	handler, err := checkpoints.Build(ctx).Dir(checkpointDir).Keep(3).Done()
//	if err != nil { ... }
//	...
//	err = handler.Save()
package checkpoints

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/barseq/barseq/ml/context"
	"github.com/barseq/barseq/types"
	"github.com/barseq/barseq/types/tensors"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// DirPermMode is the default directory creation permission (before umask) used.
var DirPermMode = os.FileMode(0770)

const checkpointBaseName = "checkpoint"

var checkpointNameRegexp = regexp.MustCompile(`^checkpoint-(\d+)\.bin$`)

// Config for the checkpoints Handler to be created. This is created with
// Build() and configured with the various methods. Once finished, call Done()
// and it will output a Handler, already attached to the Context as its Loader.
type Config struct {
	ctx *context.Context
	err error

	dir         string
	keep        int
	progressbar bool
}

// Build a configuration for a checkpoints.Handler operating on the given
// context. Call Done when finished configuring.
func Build(ctx *context.Context) *Config {
	return &Config{ctx: ctx, keep: 1}
}

func (c *Config) setError(err error) {
	if c.err == nil {
		c.err = err
	}
}

// Dir sets the directory where to save and load checkpoints. It is created if
// it doesn't exist yet.
func (c *Config) Dir(dir string) *Config {
	fi, err := os.Stat(dir)
	if err != nil && !os.IsNotExist(err) {
		c.setError(errors.Wrapf(err, "failed to os.Stat(%q)", dir))
		return c
	}
	if err == nil && !fi.IsDir() {
		c.setError(errors.Errorf("checkpoint path %q exists but is a normal file, not a directory", dir))
		return c
	}
	if err != nil {
		if err = os.MkdirAll(dir, DirPermMode); err != nil {
			c.setError(errors.Wrapf(err, "trying to create dir %q", dir))
			return c
		}
	}
	c.dir = dir
	return c
}

// TempDir creates a temporary directory under dir with the given pattern and
// uses it for checkpoints. A convenience wrapper to os.MkdirTemp, typically
// used in tests.
func (c *Config) TempDir(dir, pattern string) *Config {
	newDir, err := os.MkdirTemp(dir, pattern)
	if err != nil {
		c.setError(errors.Wrapf(err, "failed os.MkdirTemp(%q, %q)", dir, pattern))
		return c
	}
	c.dir = newDir
	return c
}

// Keep configures the number of checkpoint files to keep. If set to -1, older
// checkpoints are never erased. The default is 1.
func (c *Config) Keep(n int) *Config {
	c.keep = n
	return c
}

// ProgressBar enables a per-variable progress bar during Save, useful for
// large models on the command line.
func (c *Config) ProgressBar() *Config {
	c.progressbar = true
	return c
}

// Done builds the Handler: if a previous checkpoint exists in the directory,
// it is read now, and the Handler is attached to the Context as its Loader so
// the values are fed during variable initialization.
func (c *Config) Done() (*Handler, error) {
	if c.err != nil {
		return nil, c.err
	}
	if c.dir == "" {
		return nil, errors.New("checkpoints: no directory configured, use Dir or TempDir")
	}
	h := &Handler{config: c}
	if err := h.loadLatest(); err != nil {
		return nil, err
	}
	c.ctx.SetLoader(h)
	return h, nil
}

// Handler saves and loads checkpoints for a Context. It implements
// context.Loader, serving values from the latest checkpoint found in the
// directory when the Handler was built.
type Handler struct {
	config *Config

	// loaded values from the latest checkpoint, keyed by scope-and-name.
	loaded map[string]*tensors.Tensor

	// step counter included in checkpoint file names, monotonically increasing.
	nextStep int
}

// Dir returns the directory the handler is configured to operate on.
func (h *Handler) Dir() string { return h.config.dir }

// LoadVariable implements context.Loader, serving values read from the latest
// checkpoint found when the Handler was built.
func (h *Handler) LoadVariable(v *context.Variable) (*tensors.Tensor, bool, error) {
	value, found := h.loaded[v.ScopeAndName()]
	return value, found, nil
}

// HasCheckpoint returns whether a previously saved checkpoint was found (and
// read) when the Handler was built.
func (h *Handler) HasCheckpoint() bool { return len(h.loaded) > 0 }

// EnumerateLoaded calls fn for each value read from the latest checkpoint,
// keyed by the variable's scope-and-name, in sorted order. Useful to inspect
// a checkpoint without re-declaring the variables it was saved from.
func (h *Handler) EnumerateLoaded(fn func(scopeAndName string, value *tensors.Tensor)) {
	names := types.MakeSet[string](len(h.loaded))
	for name := range h.loaded {
		names.Insert(name)
	}
	for _, name := range types.SortedKeys(names) {
		fn(name, h.loaded[name])
	}
}

// listCheckpoints returns the checkpoint steps present in the directory, sorted.
func (h *Handler) listCheckpoints() ([]int, error) {
	entries, err := os.ReadDir(h.config.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list checkpoint directory %q", h.config.dir)
	}
	var steps []int
	for _, entry := range entries {
		matches := checkpointNameRegexp.FindStringSubmatch(entry.Name())
		if matches == nil {
			continue
		}
		step, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}
		steps = append(steps, step)
	}
	sort.Ints(steps)
	return steps, nil
}

func checkpointPath(dir string, step int) string {
	return filepath.Join(dir, fmt.Sprintf("%s-%08d.bin", checkpointBaseName, step))
}

func (h *Handler) loadLatest() error {
	steps, err := h.listCheckpoints()
	if err != nil {
		return err
	}
	h.loaded = make(map[string]*tensors.Tensor)
	if len(steps) == 0 {
		return nil
	}
	latest := steps[len(steps)-1]
	h.nextStep = latest + 1
	path := checkpointPath(h.config.dir, latest)

	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open checkpoint %q", path)
	}
	defer func() { _ = f.Close() }()

	dec := gob.NewDecoder(f)
	var count int
	if err = dec.Decode(&count); err != nil {
		return errors.Wrapf(err, "corrupt checkpoint %q: failed to read variable count", path)
	}
	for range count {
		var name string
		if err = dec.Decode(&name); err != nil {
			return errors.Wrapf(err, "corrupt checkpoint %q: failed to read variable name", path)
		}
		value, err := tensors.GobDeserialize(dec)
		if err != nil {
			return errors.WithMessagef(err, "corrupt checkpoint %q: variable %q", path, name)
		}
		h.loaded[name] = value
	}
	klog.V(1).Infof("checkpoints: loaded %d variables from %q", count, path)
	return nil
}

// Save writes a new checkpoint with the current values of all variables of
// the context that have one, then removes older checkpoints beyond the
// configured Keep count.
func (h *Handler) Save() error {
	ctx := h.config.ctx
	var vars []*context.Variable
	ctx.EnumerateVariables(func(v *context.Variable) {
		if v.HasValue() {
			vars = append(vars, v)
		}
	})

	step := h.nextStep
	h.nextStep++
	path := checkpointPath(h.config.dir, step)
	f, err := os.CreateTemp(h.config.dir, "tmp-checkpoint-")
	if err != nil {
		return errors.Wrapf(err, "failed to create temporary checkpoint file in %q", h.config.dir)
	}
	tmpName := f.Name()

	var bar *progressbar.ProgressBar
	if h.config.progressbar {
		bar = progressbar.Default(int64(len(vars)), "saving checkpoint")
	}
	enc := gob.NewEncoder(f)
	err = enc.Encode(len(vars))
	for _, v := range vars {
		if err != nil {
			break
		}
		if err = enc.Encode(v.ScopeAndName()); err != nil {
			break
		}
		err = v.Value().GobSerialize(enc)
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "failed to write checkpoint %q", path)
	}
	if err = os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, "failed to move checkpoint into place at %q", path)
	}
	klog.V(1).Infof("checkpoints: saved %d variables to %q", len(vars), path)
	return h.removeOldCheckpoints()
}

func (h *Handler) removeOldCheckpoints() error {
	if h.config.keep < 0 {
		return nil
	}
	steps, err := h.listCheckpoints()
	if err != nil {
		return err
	}
	for len(steps) > h.config.keep {
		path := checkpointPath(h.config.dir, steps[0])
		if err = os.Remove(path); err != nil {
			return errors.Wrapf(err, "failed to remove old checkpoint %q", path)
		}
		steps = steps[1:]
	}
	return nil
}
