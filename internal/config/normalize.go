package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCapture(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ScreenshotsDir) == "" {
		c.Paths.ScreenshotsDir = defaultScreenshotsDir
	}
	if c.Paths.ScreenshotsDir, err = expandPath(c.Paths.ScreenshotsDir); err != nil {
		return fmt.Errorf("paths.screenshots_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = strings.TrimSpace(os.Getenv("SNAPDIFF_API_TOKEN"))
	}
	return nil
}

func (c *Config) normalizeCapture() error {
	c.Capture.RemoteURL = strings.TrimSpace(c.Capture.RemoteURL)
	c.Capture.ChromeBin = strings.TrimSpace(c.Capture.ChromeBin)
	if c.Capture.ChromeBin != "" {
		expanded, err := expandPath(c.Capture.ChromeBin)
		if err != nil {
			return fmt.Errorf("capture.chrome_bin: %w", err)
		}
		c.Capture.ChromeBin = expanded
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.AMQPURL = strings.TrimSpace(c.Notifications.AMQPURL)
	if c.Notifications.AMQPURL == "" {
		c.Notifications.AMQPURL = strings.TrimSpace(os.Getenv("SNAPDIFF_AMQP_URL"))
	}
	c.Notifications.AMQPExchange = strings.TrimSpace(c.Notifications.AMQPExchange)
	if c.Notifications.AMQPExchange == "" {
		c.Notifications.AMQPExchange = defaultAMQPExchange
	}
	if c.Notifications.HubCapacity <= 0 {
		c.Notifications.HubCapacity = defaultHubCapacity
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
