package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sorajate/soliloque-server/pkg/chandb"
)

// Conf holds server-level configuration loaded from a YAML file.
type Conf struct {
	ServerName string `yaml:"server_name"`
	Machine    string `yaml:"machine"`
	Port       int    `yaml:"port"`
	Password   string `yaml:"password"`

	// --- Persistence ---
	BoltPath string `yaml:"bolt_path"`
	SQLPath  string `yaml:"sql_path"`

	// --- Observability ---
	MetricsAddr string `yaml:"metrics_addr"`

	// --- Initial channel tree (used when the store is empty) ---
	Channels []ChannelConf `yaml:"channels"`
}

// ChannelConf describes one configured channel. Subchannels nest one level
// deep, matching the hierarchy invariant.
type ChannelConf struct {
	Name        string `yaml:"name"`
	Topic       string `yaml:"topic"`
	Description string `yaml:"description"`
	MaxUsers    uint16 `yaml:"max_users"`
	SortOrder   uint16 `yaml:"sort_order"`
	Codec       uint16 `yaml:"codec"`

	Default      bool   `yaml:"default"`
	Moderated    bool   `yaml:"moderated"`
	Subchannels  bool   `yaml:"subchannels"`
	Unregistered bool   `yaml:"unregistered"`
	Password     string `yaml:"password"`

	Subs []ChannelConf `yaml:"subs"`
}

// LoadConf reads and parses a YAML config file, applying defaults for
// anything left unset.
func LoadConf(path string) (*Conf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server: read config %s: %w", path, err)
	}
	var conf Conf
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("server: parse config %s: %w", path, err)
	}
	conf.applyDefaults()
	return &conf, nil
}

func (c *Conf) applyDefaults() {
	if c.ServerName == "" {
		c.ServerName = "soliloque server"
	}
	if c.Machine == "" {
		c.Machine, _ = os.Hostname()
	}
	if c.Port == 0 {
		c.Port = 8767
	}
}

// Flags converts the named flag switches to the wire bitfield.
func (cc *ChannelConf) Flags() uint16 {
	var flags uint16
	if cc.Default {
		flags |= chandb.FlagDefault
	}
	if cc.Moderated {
		flags |= chandb.FlagModerated
	}
	if cc.Subchannels {
		flags |= chandb.FlagSubchannels
	}
	if cc.Unregistered {
		flags |= chandb.FlagUnregistered
	}
	if cc.Password != "" {
		flags |= chandb.FlagPassword
	}
	return flags
}

// Build constructs the configured channel without registering it.
func (cc *ChannelConf) Build() (*chandb.Channel, error) {
	ch, err := chandb.NewChannel(cc.Name, cc.Topic, cc.Description,
		cc.Flags(), chandb.Codec(cc.Codec), cc.SortOrder, cc.MaxUsers)
	if err != nil {
		return nil, err
	}
	if cc.Password != "" {
		if err := ch.SetPassword(chandb.HashPassword(cc.Password)); err != nil {
			return nil, err
		}
	}
	return ch, nil
}

// ApplyChannels builds the configured channel tree and registers it with s,
// subchannels after their parents.
func (c *Conf) ApplyChannels(s *Server) error {
	for _, cc := range c.Channels {
		ch, err := cc.Build()
		if err != nil {
			return fmt.Errorf("server: config channel %q: %w", cc.Name, err)
		}
		if err := s.AddChannel(ch); err != nil {
			return err
		}
		for _, sc := range cc.Subs {
			sub, err := sc.Build()
			if err != nil {
				return fmt.Errorf("server: config channel %q: %w", sc.Name, err)
			}
			if err := ch.AddSubchannel(sub); err != nil {
				return fmt.Errorf("server: config channel %q: %w", sc.Name, err)
			}
			if err := s.AddChannel(sub); err != nil {
				return err
			}
		}
	}
	return nil
}
