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

// barseq_checkpoints inspects checkpoint directories saved by the session
// layer: it lists the saved parameters with their shapes, sizes and simple
// value statistics, without rebuilding the model that produced them.
//
// Usage:
//
//	barseq_checkpoints [-summary] [-vars] <checkpoint_dir>
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/barseq/barseq/ml/context"
	"github.com/barseq/barseq/ml/context/checkpoints"
	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagSummary = flag.Bool("summary", false, "Display parameter counts and memory usage of the checkpoint.")
	flagVars    = flag.Bool("vars", false, "List the saved parameters with shapes and value statistics.")
)

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags...] <checkpoint_dir>\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	dir := flag.Arg(0)

	handler := must.M1(checkpoints.Build(context.New()).Dir(dir).Done())
	if !handler.HasCheckpoint() {
		klog.Exitf("No checkpoint found in %q", dir)
	}

	if !*flagSummary && !*flagVars {
		*flagSummary = true
	}
	if *flagSummary {
		Summary(handler)
	}
	if *flagVars {
		ListVariables(handler)
	}
}
