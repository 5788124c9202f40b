package embedding

import (
	"fmt"
	"os"
)

// checkModelFile reports a missing or unreadable model file before the runtime is asked to load it.
func checkModelFile(path string) error {
	if path == "" {
		return fmt.Errorf("onnx embedder: model_path is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("onnx embedder: model file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("onnx embedder: model path %s is a directory", path)
	}
	return nil
}
