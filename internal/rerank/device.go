package rerank

import "os"

// cudaLibraryPaths are the locations a CUDA runtime library would live at
// if one were installed and usable by a native cross-encoder model.
var cudaLibraryPaths = []string{
	"/usr/lib/x86_64-linux-gnu/libcudart.so",
	"/usr/local/cuda/lib64/libcudart.so",
}

// detectDevice probes for a CUDA-capable runtime the way an ONNX
// setup probes for an installed shared library, falling back to CPU when
// none is found.
func detectDevice() string {
	for _, path := range cudaLibraryPaths {
		if _, err := os.Stat(path); err == nil {
			return "gpu"
		}
	}
	return "cpu"
}
