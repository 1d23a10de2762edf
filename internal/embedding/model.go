package embedding

import (
	"fmt"
	"os"
)

// checkModel reports a readable error when the model file is missing.
func checkModel(modelPath string) error {
	info, err := os.Stat(modelPath)
	if err != nil {
		return fmt.Errorf("model not found at %s: %w", modelPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("model path %s is a directory", modelPath)
	}
	return nil
}
