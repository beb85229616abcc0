package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mohitkumar/stepflow/logger"
	"github.com/mohitkumar/stepflow/model"
	"github.com/mohitkumar/stepflow/util"
	"go.uber.org/zap"
)

// LoadDirectory saves every *.yaml, *.yml and *.json workflow definition
// found directly under dir. Loading stops at the first invalid file.
func LoadDirectory(svc MetadataService, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	yamlDecoder := util.NewYamlEncoderDecoder[model.Workflow]()
	jsonDecoder := util.NewJsonEncoderDecoder[model.Workflow]()
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var decoder util.EncoderDecoder[model.Workflow]
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml":
			decoder = yamlDecoder
		case ".json":
			decoder = jsonDecoder
		default:
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return loaded, err
		}
		wf, err := decoder.Decode(data)
		if err != nil {
			return loaded, fmt.Errorf("error decoding %s: %w", path, err)
		}
		if err := svc.SaveFlow(*wf); err != nil {
			return loaded, fmt.Errorf("error loading %s: %w", path, err)
		}
		logger.Info("loaded workflow definition", zap.String("workflowId", wf.Id), zap.String("file", path))
		loaded++
	}
	return loaded, nil
}
