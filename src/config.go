package bridge

/*------------------------------------------------------------------
 *
 * Purpose:	Configuration (ambient stack, SPEC_FULL §10.2): a YAML
 *		file overridable by CLI flags.
 *
 * Description:	pflag usage mirrors cmd/direwolf/main.go's StringP/
 *		IntP/BoolP flag declarations and pflag.Parse()/Usage()
 *		idiom. Defaults mirror config.h's constants (RR_INTERVAL,
 *		RX_TIMEOUT, SYNC_RX_DELAY, VCP_RX_TIMEOUT, STATUS_INTERVAL).
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config is the full set of tunables a deployment needs; YAML-decoded,
// then selectively overridden by flags.
type Config struct {
	V24 struct {
		GPIOChip string `yaml:"gpio_chip"`
		RXD      int    `yaml:"rxd_line"`
		RXCLK    int    `yaml:"rxclk_line"`
		TXD      int    `yaml:"txd_line"`
		TXCLK    int    `yaml:"txclk_line"`
		CTS      int    `yaml:"cts_line"`
	} `yaml:"v24"`

	Host struct {
		Device    string `yaml:"device"` // path, or "auto" for udev discovery
		Baud      int    `yaml:"baud"`
		VendorID  string `yaml:"vendor_id"`
		ProductID string `yaml:"product_id"`
	} `yaml:"host"`

	Timers struct {
		RRIntervalMS     int `yaml:"rr_interval_ms"`
		RXTimeoutMS      int `yaml:"rx_timeout_ms"`
		SyncRXDelayMS    int `yaml:"sync_rx_delay_ms"`
		VCPRXTimeoutMS   int `yaml:"vcp_rx_timeout_ms"`
		StatusIntervalMS int `yaml:"status_interval_ms"`
	} `yaml:"timers"`

	Site           int    `yaml:"site"`
	HardwareString string `yaml:"hardware_string"`
	FlashPagePath  string `yaml:"flash_page_path"`
	PeriodicStatus bool   `yaml:"periodic_status"`
	DNSSDName      string `yaml:"dnssd_name"`
	DNSSDEnabled   bool   `yaml:"dnssd_enabled"`
	LogLevel       string `yaml:"log_level"`
}

func defaultConfig() Config {
	var c Config
	c.V24.GPIOChip = "gpiochip0"
	// Line offsets have no firmware-derived default (sync.h names pins
	// via STM32CubeMX labels, not numeric GPIO offsets) - these are a
	// placeholder wiring a deployment's YAML is expected to override.
	c.V24.RXD = 5
	c.V24.RXCLK = 6
	c.V24.TXD = 12
	c.V24.TXCLK = 13
	c.V24.CTS = 16
	c.Host.Device = "auto"
	c.Host.Baud = 115200
	c.Timers.RRIntervalMS = 5000
	c.Timers.RXTimeoutMS = 10000
	c.Timers.SyncRXDelayMS = 1000
	c.Timers.VCPRXTimeoutMS = 100
	c.Timers.StatusIntervalMS = 30000
	c.Site = int(hdlcSite)
	c.HardwareString = "quantarbridge"
	c.FlashPagePath = "quantarbridge.flash"
	c.LogLevel = "info"
	return c
}

func (c Config) timers() hdlcTimers {
	return hdlcTimers{
		rrInterval:  time.Duration(c.Timers.RRIntervalMS) * time.Millisecond,
		rxTimeout:   time.Duration(c.Timers.RXTimeoutMS) * time.Millisecond,
		syncRXDelay: time.Duration(c.Timers.SyncRXDelayMS) * time.Millisecond,
	}
}

// LoadConfig reads and decodes a YAML configuration file, starting from
// defaultConfig's values. A missing path (or empty string) yields
// defaults unmodified, matching the firmware's "no config page written
// yet" boot case.
func LoadConfig(path string) (Config, error) {
	c := defaultConfig()
	if path == "" {
		return c, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return c, fmt.Errorf("open config %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&c); err != nil {
		return c, fmt.Errorf("parse config %s: %w", path, err)
	}
	return c, nil
}

// FlagOverrides mirrors cmd/direwolf/main.go's flag declarations: CLI
// flags override whatever the YAML file set, never the other way
// around.
type FlagOverrides struct {
	configFile *string
	device     *string
	gpioChip   *string
	logLevel   *string
	version    *bool
}

func ParseFlags() FlagOverrides {
	f := FlagOverrides{
		configFile: pflag.StringP("config-file", "c", "", "YAML configuration file path."),
		device:     pflag.StringP("device", "d", "", "Async host channel device path, or \"auto\"."),
		gpioChip:   pflag.StringP("gpio-chip", "g", "", "V.24 GPIO chip device name."),
		logLevel:   pflag.StringP("log-level", "l", "", "Log level: debug, info, warn, error."),
		version:    pflag.BoolP("version", "v", false, "Print version and exit."),
	}
	pflag.Usage = func() {
		fmt.Fprintln(os.Stderr, "quantarbridge: P25-to-Quantar V.24 bridge adapter")
		pflag.PrintDefaults()
	}
	pflag.Parse()
	return f
}

func (f FlagOverrides) ConfigFile() string { return *f.configFile }
func (f FlagOverrides) Version() bool      { return *f.version }

func (f FlagOverrides) Apply(c Config) Config {
	if f.device != nil && *f.device != "" {
		c.Host.Device = *f.device
	}
	if f.gpioChip != nil && *f.gpioChip != "" {
		c.V24.GPIOChip = *f.gpioChip
	}
	if f.logLevel != nil && *f.logLevel != "" {
		c.LogLevel = *f.logLevel
	}
	return c
}
