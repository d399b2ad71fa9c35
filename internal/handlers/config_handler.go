package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hirescout/internal/common"
)

type ConfigHandler struct {
	logger arbor.ILogger
	config *common.Config
}

func NewConfigHandler(logger arbor.ILogger, config *common.Config) *ConfigHandler {
	return &ConfigHandler{
		logger: logger,
		config: config,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Version string         `json:"version"`
	Build   string         `json:"build"`
	Port    int            `json:"port"`
	Host    string         `json:"host"`
	Config  *common.Config `json:"config"`
}

// GetConfig returns the effective configuration with the password masked
func (h *ConfigHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	config := common.DeepCloneConfig(h.config)
	if config.LinkedIn.Password != "" {
		config.LinkedIn.Password = "********"
	}

	WriteJSON(w, http.StatusOK, ConfigResponse{
		Version: common.GetVersion(),
		Build:   common.GetBuild(),
		Port:    config.Server.Port,
		Host:    config.Server.Host,
		Config:  config,
	})
}
