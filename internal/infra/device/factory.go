package device

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/bgmbox/internal/app/playback"
	"github.com/osa030/bgmbox/internal/infra/config"
)

// NewFactory creates the device factory selected by configuration.
func NewFactory(cfg config.DeviceConfig) (playback.DeviceFactory, error) {
	zlog.Debug().Msgf("creating device factory: type=%s settings=%+v", cfg.Type, cfg.Settings)

	var (
		factory playback.DeviceFactory
		err     error
	)
	switch cfg.Type {
	case "headless", "":
		factory, err = NewHeadlessFactory(cfg.Settings)
	case "oto":
		factory, err = NewOtoFactory(cfg.Settings)
	default:
		return nil, errors.Newf("unsupported device type: %s", cfg.Type)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create device factory (type %s)", cfg.Type)
	}

	zlog.Info().Msgf("registered device factory: type=%s", cfg.Type)
	return factory, nil
}
