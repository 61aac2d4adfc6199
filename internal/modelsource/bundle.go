// Package modelsource resolves a model bundle (ONNX graph manifest
// plus tokenizer vocabulary, label list, and config) from a remote
// repository onto local disk, verifying every file's checksum, and
// smoke-tests a resolved bundle's graphs against the backend.
package modelsource

import "fmt"

// File is one file belonging to a model bundle: an ONNX graph, a
// tokenizer vocabulary, a label list, or a config document.
type File struct {
	Filename  string `json:"filename"`
	Revision  string `json:"revision"`
	SHA256    string `json:"sha256"`
	LocalPath string `json:"local_path,omitempty"`
}

// Bundle is the full set of files a model needs: at minimum a
// model.json graph manifest and model.onnx file(s); optionally a
// WordPiece vocab.txt, a BPE vocab.json+merges.txt pair, a label list,
// and a config.json.
type Bundle struct {
	Repo  string `json:"repo"`
	Files []File `json:"files"`
}

// KnownBundle resolves a pinned bundle definition for one of the
// toolkit's reference repos. Unlike the teacher's TTS-specific
// checkpoint pins, these describe ONNX graph + tokenizer + label
// bundles for the classification, detection, and generation example
// models this toolkit ships manifests for.
func KnownBundle(repo string) (Bundle, error) {
	switch repo {
	case "onnx-infer/bert-base-wordpiece-classifier":
		return Bundle{
			Repo: repo,
			Files: []File{
				{Filename: "model.json", Revision: "main", SHA256: ""},
				{Filename: "model.onnx", Revision: "main", SHA256: ""},
				{Filename: "vocab.txt", Revision: "main", SHA256: ""},
				{Filename: "labels.txt", Revision: "main", SHA256: ""},
			},
		}, nil
	case "onnx-infer/gpt2-bpe-decoder":
		return Bundle{
			Repo: repo,
			Files: []File{
				{Filename: "model.json", Revision: "main", SHA256: ""},
				{Filename: "model.onnx", Revision: "main", SHA256: ""},
				{Filename: "vocab.json", Revision: "main", SHA256: ""},
				{Filename: "merges.txt", Revision: "main", SHA256: ""},
				{Filename: "config.json", Revision: "main", SHA256: ""},
			},
		}, nil
	case "onnx-infer/yolov8-detector":
		return Bundle{
			Repo: repo,
			Files: []File{
				{Filename: "model.json", Revision: "main", SHA256: ""},
				{Filename: "model.onnx", Revision: "main", SHA256: ""},
				{Filename: "labels.txt", Revision: "main", SHA256: ""},
			},
		}, nil
	default:
		return Bundle{}, fmt.Errorf("no known bundle for repo %q", repo)
	}
}
