package main

import (
	"log/slog"

	"github.com/l3kza08/ichat-api/internal/config"
	"github.com/l3kza08/ichat-api/internal/icegate"
)

func logStartupSecurityWarnings(logger *slog.Logger, cfg config.Config) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.RevealToken == "" {
		logger.Warn("startup security warning: ICHAT_REVEAL_TOKEN is unset, credential reveal is disabled and /ice always serves masked data",
			"warning_code", "reveal_token_unset",
			"mode", cfg.Mode,
		)
	}

	if cfg.Mode == config.ModeProd && !cfg.TLSEnabled() {
		logger.Warn("startup security warning: TLS is disabled while --mode=prod, signaling traffic and reveal tokens travel in cleartext",
			"warning_code", "tls_disabled_in_prod",
			"mode", cfg.Mode,
		)
	}

	if len(cfg.ICEServers) == 0 {
		logger.Warn("startup security warning: no ICE servers configured, clients must supply their own STUN/TURN servers",
			"warning_code", "no_ice_servers",
			"mode", cfg.Mode,
		)
	}

	hasTURN := false
	for _, s := range cfg.ICEServers {
		if icegate.HasTURNURL(s) {
			hasTURN = true
			break
		}
	}
	if hasTURN && cfg.TURNREST.SharedSecret == "" {
		for _, s := range cfg.ICEServers {
			if icegate.HasTURNURL(s) && s.Credential == nil {
				logger.Warn("startup security warning: TURN server configured without static credentials or a TURN REST secret",
					"warning_code", "turn_without_credentials",
					"mode", cfg.Mode,
				)
				break
			}
		}
	}
}
