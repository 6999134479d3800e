package cnf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/czcorpus/cnc-gokit/logging"
	"github.com/rs/zerolog/log"
)

const (
	dfltListenAddress          = "127.0.0.1"
	dfltListenPort             = 5000
	dfltServerReadTimeoutSecs  = 30
	dfltServerWriteTimeoutSecs = 60
	dfltTagTablePath           = "TagListPL.csv"
	dfltStanzaQueryTimeoutSecs = 30
	dfltMaxTextLength          = 100000
)

// StanzaConf configures the dockerised Stanza service
type StanzaConf struct {
	ProjectName      string   `json:"projectName"`
	Image            string   `json:"image"`
	Processors       []string `json:"processors"`
	QueryTimeoutSecs int      `json:"queryTimeoutSecs"`

	// Lightweight selects CPU-only torch. A nil value means true.
	Lightweight *bool `json:"lightweight"`

	// Recreate removes an existing container on startup
	Recreate bool `json:"recreate"`
}

func (sc *StanzaConf) QueryTimeout() time.Duration {
	return time.Duration(sc.QueryTimeoutSecs) * time.Second
}

func (sc *StanzaConf) IsLightweight() bool {
	return sc.Lightweight == nil || *sc.Lightweight
}

// Conf is a global configuration of the app
type Conf struct {
	ListenAddress          string              `json:"listenAddress"`
	ListenPort             int                 `json:"listenPort"`
	ServerReadTimeoutSecs  int                 `json:"serverReadTimeoutSecs"`
	ServerWriteTimeoutSecs int                 `json:"serverWriteTimeoutSecs"`
	CORSAllowedOrigins     []string            `json:"corsAllowedOrigins"`
	TagTablePath           string              `json:"tagTablePath"`
	MaxTextLength          int                 `json:"maxTextLength"`
	VerifiedOverwrite      bool                `json:"verifiedOverwrite"`
	Stanza                 *StanzaConf         `json:"stanza"`
	Logging                logging.LoggingConf `json:"logging"`
	srcPath                string
}

// GetSourcePath returns an absolute path of a file
// the config was loaded from.
func (conf *Conf) GetSourcePath() string {
	if filepath.IsAbs(conf.srcPath) {
		return conf.srcPath
	}
	var cwd string
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "[failed to get working dir]"
	}
	return filepath.Join(cwd, conf.srcPath)
}

// ServerAddr returns the address the HTTP server listens at
func (conf *Conf) ServerAddr() string {
	return fmt.Sprintf("%s:%d", conf.ListenAddress, conf.ListenPort)
}

// ParseConfig decodes a JSON configuration. Unknown keys are rejected.
func ParseConfig(rawData []byte) (*Conf, error) {
	var conf Conf
	dec := json.NewDecoder(bytes.NewReader(rawData))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

func LoadConfig(path string) *Conf {
	if path == "" {
		log.Fatal().Msg("Cannot load config - path not specified")
	}
	rawData, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load config")
	}
	conf, err := ParseConfig(rawData)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load config")
	}
	conf.srcPath = path
	return conf
}

func ApplyDefaults(conf *Conf) {
	if conf.ListenAddress == "" {
		conf.ListenAddress = dfltListenAddress
		log.Warn().Msgf("listenAddress not specified, using default: %s", dfltListenAddress)
	}
	if conf.ListenPort == 0 {
		conf.ListenPort = dfltListenPort
		log.Warn().Msgf("listenPort not specified, using default: %d", dfltListenPort)
	}
	if conf.ServerReadTimeoutSecs == 0 {
		conf.ServerReadTimeoutSecs = dfltServerReadTimeoutSecs
		log.Warn().Msgf(
			"serverReadTimeoutSecs not specified, using default: %d",
			dfltServerReadTimeoutSecs,
		)
	}
	if conf.ServerWriteTimeoutSecs == 0 {
		conf.ServerWriteTimeoutSecs = dfltServerWriteTimeoutSecs
		log.Warn().Msgf(
			"serverWriteTimeoutSecs not specified, using default: %d",
			dfltServerWriteTimeoutSecs,
		)
	}
	if conf.TagTablePath == "" {
		conf.TagTablePath = dfltTagTablePath
		log.Warn().Msgf("tagTablePath not specified, using default: %s", dfltTagTablePath)
	}
	if conf.MaxTextLength == 0 {
		conf.MaxTextLength = dfltMaxTextLength
		log.Warn().Msgf("maxTextLength not specified, using default: %d", dfltMaxTextLength)
	}
	if conf.Stanza == nil {
		conf.Stanza = &StanzaConf{}
		log.Warn().Msg("stanza section not specified, using defaults")
	}
	if conf.Stanza.QueryTimeoutSecs == 0 {
		conf.Stanza.QueryTimeoutSecs = dfltStanzaQueryTimeoutSecs
		log.Warn().Msgf(
			"stanza.queryTimeoutSecs not specified, using default: %d",
			dfltStanzaQueryTimeoutSecs,
		)
	}
}
