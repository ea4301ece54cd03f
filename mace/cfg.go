package mace

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// configure a mace repl
type MaceConfig struct {
	CpuProfile     string
	MemProfile     string
	ExitOnFailure  bool
	CountFuncCalls bool
	Flags          *flag.FlagSet
	Command        string
	Sandboxed      bool
	Quiet          bool
	Trace          bool
	NoColor        bool

	// liner bombs under emacs, avoid it with this flag.
	NoLiner bool
	Prompt  string // default "mace> "

	HistoryFile string
	MaxHistory  int
	ModulePath  string // colon separated
	ConfigFile  string
	EnvFile     string
	InitFiles   []string

	// ValidCommands extends the bare-command allow-list.
	ValidCommands []string

	AfterScriptDontExit bool
}

// SiteConfig is the YAML site configuration file.
type SiteConfig struct {
	HistoryFile   string   `yaml:"history_file"`
	MaxHistory    int      `yaml:"max_history"`
	ModulesPath   []string `yaml:"modules_path"`
	InitFiles     []string `yaml:"init_files"`
	Prompt        string   `yaml:"prompt"`
	ValidCommands []string `yaml:"valid_commands"`
}

func NewMaceConfig(cmdname string) *MaceConfig {
	return &MaceConfig{
		Flags: flag.NewFlagSet(cmdname, flag.ExitOnError),
	}
}

// call DefineFlags before myflags.Parse()
func (c *MaceConfig) DefineFlags() {
	c.Flags.StringVar(&c.CpuProfile, "cpuprofile", "", "write cpu profile to file")
	c.Flags.StringVar(&c.MemProfile, "memprofile", "", "write mem profile to file")
	c.Flags.BoolVar(&c.ExitOnFailure, "exitonfail", false, "exit on failure instead of starting repl")
	c.Flags.BoolVar(&c.CountFuncCalls, "countcalls", false, "count how many times each function is run")
	c.Flags.StringVar(&c.Command, "c", "", "statements to run")
	c.Flags.BoolVar(&c.Sandboxed, "sandbox", false, "run sandboxed; disallow file system and clock functions and script imports")
	c.Flags.BoolVar(&c.Quiet, "quiet", false, "start repl without printing the version/mode/help banner")
	c.Flags.BoolVar(&c.Trace, "trace", false, "trace execution (warning: very verbose and slow)")
	c.Flags.BoolVar(&c.NoLiner, "noliner", false, "read plain stdin lines instead of using the line editor")
	c.Flags.BoolVar(&c.NoColor, "nocolor", false, "do not colour error output")
	c.Flags.StringVar(&c.HistoryFile, "history", "", "history file (default ~/.mace_history)")
	c.Flags.IntVar(&c.MaxHistory, "maxhistory", 0, "maximum number of history lines to keep")
	c.Flags.StringVar(&c.ModulePath, "path", "", "colon separated directories searched by import")
	c.Flags.StringVar(&c.ConfigFile, "config", "", "YAML site configuration file")
	c.Flags.StringVar(&c.EnvFile, "env", ".env", "dotenv file with MACE_* settings")
	c.Flags.BoolVar(&c.AfterScriptDontExit, "i", false, "stay interactive after running a script")
}

// call c.ValidateConfig() after myflags.Parse(). Settings given on
// the command line win over the environment, which wins over the
// site configuration file.
func (c *MaceConfig) ValidateConfig() error {
	set := make(map[string]bool)
	c.Flags.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if c.ConfigFile != "" {
		site, err := LoadSiteConfig(c.ConfigFile)
		if err != nil {
			return err
		}
		c.applySite(site, set)
	}
	if err := c.applyEnv(set); err != nil {
		return err
	}

	if c.Prompt == "" {
		c.Prompt = DefaultPrompt
	}
	if c.MaxHistory < 0 {
		return fmt.Errorf("-maxhistory must not be negative, got %d", c.MaxHistory)
	}
	if c.MaxHistory == 0 {
		c.MaxHistory = DefaultMaxHistory
	}
	if c.HistoryFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.HistoryFile = filepath.Join(home, ".mace_history")
		}
	}
	return nil
}

func LoadSiteConfig(path string) (*SiteConfig, error) {
	by, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file '%s': %w", path, err)
	}
	var site SiteConfig
	if err := yaml.Unmarshal(by, &site); err != nil {
		return nil, fmt.Errorf("bad config file '%s': %w", path, err)
	}
	return &site, nil
}

func (c *MaceConfig) applySite(site *SiteConfig, set map[string]bool) {
	if site.HistoryFile != "" && !set["history"] {
		c.HistoryFile = site.HistoryFile
	}
	if site.MaxHistory > 0 && !set["maxhistory"] {
		c.MaxHistory = site.MaxHistory
	}
	if len(site.ModulesPath) > 0 && !set["path"] {
		c.ModulePath = strings.Join(site.ModulesPath, string(os.PathListSeparator))
	}
	if site.Prompt != "" {
		c.Prompt = site.Prompt
	}
	c.InitFiles = append(c.InitFiles, site.InitFiles...)
	c.ValidCommands = append(c.ValidCommands, site.ValidCommands...)
}

// applyEnv reads MACE_HISTORY, MACE_MAXHISTORY, MACE_PATH and
// MACE_PROMPT, after loading the dotenv file when it exists.
func (c *MaceConfig) applyEnv(set map[string]bool) error {
	if c.EnvFile != "" && fileExists(c.EnvFile) {
		if err := godotenv.Load(c.EnvFile); err != nil {
			return fmt.Errorf("cannot load env file '%s': %w", c.EnvFile, err)
		}
	}
	if v := os.Getenv("MACE_HISTORY"); v != "" && !set["history"] {
		c.HistoryFile = v
	}
	if v := os.Getenv("MACE_MAXHISTORY"); v != "" && !set["maxhistory"] {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MACE_MAXHISTORY: %w", err)
		}
		c.MaxHistory = n
	}
	if v := os.Getenv("MACE_PATH"); v != "" && !set["path"] {
		c.ModulePath = v
	}
	if v := os.Getenv("MACE_PROMPT"); v != "" {
		c.Prompt = v
	}
	return nil
}

// ModuleDirs splits ModulePath.
func (c *MaceConfig) ModuleDirs() []string {
	if c.ModulePath == "" {
		return nil
	}
	return filepath.SplitList(c.ModulePath)
}

// Apply installs the configuration into a session.
func (c *MaceConfig) Apply(env *Mace) {
	st := env.SymbolTable()
	sp, ok := st.Sys.members["path"].(*List)
	if !ok {
		sp = NewList(".")
		st.Sys.Set("path", sp)
	}
	for _, d := range c.ModuleDirs() {
		if indexOf(sp.Items, d) < 0 {
			sp.Items = append(sp.Items, d)
		}
	}
	st.AddValidCommand(c.ValidCommands...)
	if c.Prompt != "" {
		env.Input().Prompt = c.Prompt
	}
	env.SetDebugExec(c.Trace)
	if c.Trace {
		Verbose = true
	}
	env.SetCountCalls(c.CountFuncCalls)
}
