package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/cometx/pkg/config"
)

var _ = Describe("Configer config", func() {
	var tmpDir string

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "config-test-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	writeConfig := func(data string) {
		err := os.WriteFile(filepath.Join(tmpDir, config.FileName), []byte(data), 0o600)
		Expect(err).NotTo(HaveOccurred())
	}

	Describe("LoadConfig", func() {
		It("returns default config when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg).To(Equal(config.NewDefaultConfig()))
		})

		It("loads all config fields", func() {
			writeConfig(`version = 0

[azure]
endpoint = "https://example.openai.azure.com/"
deployment = "gpt-4.1"
api_version = "2024-10-21"

[chat]
max_tokens = 1024
temperature = 0.2

[ui]
theme = "light"
language = "en"

[features]
context_menu = false
keyboard_shortcuts = false

[server]
listen = ":9000"

[history]
sqlite_path = "/tmp/cometx.sqlite"

[events]
kafka_brokers = ["kafka-1:9092", "kafka-2:9092"]
kafka_topic = "chat"
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Azure.Endpoint).To(Equal("https://example.openai.azure.com/"))
			Expect(cfg.Azure.Deployment).To(Equal("gpt-4.1"))
			Expect(cfg.Azure.APIVersion).To(Equal("2024-10-21"))
			Expect(cfg.Chat.MaxTokens).To(Equal(1024))
			Expect(cfg.Chat.Temperature).To(Equal(0.2))
			Expect(cfg.UI.Theme).To(Equal("light"))
			Expect(cfg.UI.Language).To(Equal("en"))
			Expect(cfg.Features.ContextMenu).To(BeFalse())
			Expect(cfg.Features.KeyboardShortcuts).To(BeFalse())
			Expect(cfg.Server.Listen).To(Equal(":9000"))
			Expect(cfg.History.SQLitePath).To(Equal("/tmp/cometx.sqlite"))
			Expect(cfg.Events.KafkaBrokers).To(Equal([]string{"kafka-1:9092", "kafka-2:9092"}))
			Expect(cfg.Events.KafkaTopic).To(Equal("chat"))
		})

		It("fills in defaults for unset fields in a partial config", func() {
			writeConfig(`[azure]
deployment = "o3-mini"
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())

			defaults := config.NewDefaultConfig()
			Expect(cfg.Azure.Deployment).To(Equal("o3-mini"))
			Expect(cfg.Azure.Endpoint).To(Equal(defaults.Azure.Endpoint))
			Expect(cfg.Azure.APIVersion).To(Equal(defaults.Azure.APIVersion))
			Expect(cfg.Chat).To(Equal(defaults.Chat))
			Expect(cfg.Features).To(Equal(defaults.Features))
			Expect(cfg.Server.Listen).To(Equal(defaults.Server.Listen))
		})

		It("keeps an explicit zero temperature", func() {
			writeConfig(`[chat]
temperature = 0.0
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Chat.Temperature).To(BeZero())
		})

		It("restores required fields that were blanked", func() {
			writeConfig(`[azure]
api_version = ""

[server]
listen = ""
`)

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Azure.APIVersion).To(Equal("2024-08-01-preview"))
			Expect(cfg.Server.Listen).To(Equal("127.0.0.1:8787"))
		})

		It("returns error for malformed TOML", func() {
			writeConfig("not valid toml [[[")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(cfg).To(BeNil())
		})

		It("returns error for unsupported config version", func() {
			writeConfig("version = 99\n")

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			cfg, err := c.LoadConfig()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported config version"))
			Expect(cfg).To(BeNil())
		})
	})

	Describe("SaveConfig", func() {
		It("round-trips every field", func() {
			cfg := config.NewDefaultConfig()
			cfg.Azure.Deployment = "gpt-4.1"
			cfg.Chat.Temperature = 0
			cfg.Features.ContextMenu = false
			cfg.History.SQLitePath = "/tmp/test.sqlite"
			cfg.Events.KafkaBrokers = []string{"localhost:9092"}

			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(cfg)).To(Succeed())

			info, err := os.Stat(c.GetTarget())
			Expect(err).NotTo(HaveOccurred())
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0o600)))

			loaded, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(Equal(cfg))
		})

		It("returns error for nil config", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.SaveConfig(nil)).NotTo(Succeed())
		})
	})

	Describe("SetConfigValue", func() {
		var c *config.Configer

		BeforeEach(func() {
			var err error
			c, err = config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sets a string config key", func() {
			Expect(c.SetConfigValue("azure.deployment", "o3-mini")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Azure.Deployment).To(Equal("o3-mini"))
		})

		It("sets numeric and bool keys", func() {
			Expect(c.SetConfigValue("chat.max_tokens", "2048")).To(Succeed())
			Expect(c.SetConfigValue("chat.temperature", "0.25")).To(Succeed())
			Expect(c.SetConfigValue("features.keyboard_shortcuts", "false")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Chat.MaxTokens).To(Equal(2048))
			Expect(cfg.Chat.Temperature).To(Equal(0.25))
			Expect(cfg.Features.KeyboardShortcuts).To(BeFalse())
			Expect(cfg.Features.ContextMenu).To(BeTrue())
		})

		It("splits kafka brokers on commas", func() {
			Expect(c.SetConfigValue("events.kafka_brokers", "a:9092, b:9092,,")).To(Succeed())

			val, err := c.GetConfigValue("events.kafka_brokers")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("a:9092,b:9092"))
		})

		DescribeTable("rejects invalid values",
			func(key, value string) {
				err := c.SetConfigValue(key, value)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("invalid value for " + key))

				_, statErr := os.Stat(c.GetTarget())
				Expect(os.IsNotExist(statErr)).To(BeTrue())
			},
			Entry("temperature above range", "chat.temperature", "1.5"),
			Entry("negative temperature", "chat.temperature", "-0.1"),
			Entry("non-numeric temperature", "chat.temperature", "warm"),
			Entry("zero max tokens", "chat.max_tokens", "0"),
			Entry("non-numeric max tokens", "chat.max_tokens", "lots"),
			Entry("unknown theme", "ui.theme", "neon"),
			Entry("unknown language", "ui.language", "fr"),
			Entry("non-bool feature", "features.context_menu", "maybe"),
		)

		It("returns error for unknown key", func() {
			err := c.SetConfigValue("nonexistent_key", "value")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown config key"))
		})

		It("preserves existing values when setting a new key", func() {
			Expect(c.SetConfigValue("azure.deployment", "gpt-4.1")).To(Succeed())
			Expect(c.SetConfigValue("ui.language", "en")).To(Succeed())

			cfg, err := c.LoadConfig()
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Azure.Deployment).To(Equal("gpt-4.1"))
			Expect(cfg.UI.Language).To(Equal("en"))
		})
	})

	Describe("GetConfigValue", func() {
		It("returns default values when no config file exists", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			val, err := c.GetConfigValue("azure.endpoint")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("https://uaenorth.api.cognitive.microsoft.com/"))

			val, err = c.GetConfigValue("chat.temperature")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("0.7"))

			val, err = c.GetConfigValue("history.sqlite_path")
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(BeEmpty())
		})

		It("returns error for unknown key", func() {
			c, err := config.NewConfiger(tmpDir)
			Expect(err).NotTo(HaveOccurred())

			_, err = c.GetConfigValue("nonexistent_key")
			Expect(err).To(MatchError(ContainSubstring("unknown config key")))
		})
	})

	Describe("ValidConfigKeys", func() {
		It("returns every registered key in section order", func() {
			keys := config.ValidConfigKeys()
			Expect(keys).To(HaveLen(13))
			Expect(keys[0]).To(Equal("azure.endpoint"))
			Expect(keys[len(keys)-1]).To(Equal("events.kafka_topic"))
			for _, k := range keys {
				Expect(config.IsValidConfigKey(k)).To(BeTrue(), k)
			}
		})

		It("rejects unknown keys", func() {
			Expect(config.IsValidConfigKey("")).To(BeFalse())
			Expect(config.IsValidConfigKey("deployment")).To(BeFalse())
			Expect(config.IsValidConfigKey("azure.api_key")).To(BeFalse())
		})
	})
})

var _ = Describe("NewDefaultConfig", func() {
	It("returns fully-populated defaults", func() {
		cfg := config.NewDefaultConfig()
		Expect(cfg.Version).To(Equal(config.CurrentV))
		Expect(cfg.Azure.Endpoint).To(Equal("https://uaenorth.api.cognitive.microsoft.com/"))
		Expect(cfg.Azure.Deployment).To(Equal("gpt-4o"))
		Expect(cfg.Azure.APIVersion).To(Equal("2024-08-01-preview"))
		Expect(cfg.Chat.MaxTokens).To(Equal(4096))
		Expect(cfg.Chat.Temperature).To(Equal(0.7))
		Expect(cfg.UI.Theme).To(Equal("dark"))
		Expect(cfg.UI.Language).To(Equal("ar"))
		Expect(cfg.Features.ContextMenu).To(BeTrue())
		Expect(cfg.Features.KeyboardShortcuts).To(BeTrue())
		Expect(cfg.Server.Listen).To(Equal("127.0.0.1:8787"))
		Expect(cfg.History.SQLitePath).To(BeEmpty())
		Expect(cfg.Events.KafkaBrokers).To(BeEmpty())
	})
})

var _ = Describe("ParseConfigTOML", func() {
	It("returns defaults for empty input", func() {
		cfg, err := config.ParseConfigTOML([]byte(""))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg).To(Equal(config.NewDefaultConfig()))
	})

	It("returns error for invalid TOML", func() {
		cfg, err := config.ParseConfigTOML([]byte("not valid [[["))
		Expect(err).To(HaveOccurred())
		Expect(cfg).To(BeNil())
	})
})
