package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tasqsym/config"
	"tasqsym/model"
)

const sampleYAML = `
general:
  log_level: info
library:
  PICK:
    decoder: pick_decoder
    src: pick
robot_structure:
  combiner: default_combiner
  models:
    - mobile_base:
        unique_id: base
        model_robot: base_model
        physical_robot: base_adapter
engines:
  kinematics:
    engine: default_kinematics
    class_id: kin1
  controller:
    engine: default_controller
    class_id: ctrl1
`

func TestLoadParsesYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasqsym.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	doc, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "default_combiner", doc.RobotStructure.Combiner)
	require.Len(t, doc.RobotStructure.Models, 1)
	assert.Equal(t, model.RoleMobileBase, doc.RobotStructure.Models[0].Role)
	assert.Equal(t, "default_kinematics", doc.Engines.Kinematics.Engine)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
