package mace

import (
	"os"
	"path/filepath"
	"testing"

	cv "github.com/glycerine/goconvey/convey"
)

// clearMaceEnv empties the MACE_* variables for the test and lets
// dotenv files set them again.
func clearMaceEnv(t *testing.T) {
	for _, k := range []string{"MACE_HISTORY", "MACE_MAXHISTORY", "MACE_PATH", "MACE_PROMPT"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeFile(t *testing.T, path, body string) string {
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func parsedConfig(t *testing.T, args ...string) *MaceConfig {
	c := NewMaceConfig("mace-test")
	c.DefineFlags()
	if err := c.Flags.Parse(args); err != nil {
		t.Fatal(err)
	}
	return c
}

func Test080_ConfigLayers(t *testing.T) {

	cv.Convey(`defaults apply when nothing is configured`, t, func() {
		clearMaceEnv(t)
		c := parsedConfig(t, "-env", "")
		cv.So(c.ValidateConfig(), cv.ShouldBeNil)
		cv.So(c.Prompt, cv.ShouldEqual, DefaultPrompt)
		cv.So(c.MaxHistory, cv.ShouldEqual, DefaultMaxHistory)
		cv.So(c.ModuleDirs(), cv.ShouldBeNil)
	})

	cv.Convey(`the YAML site file is read first`, t, func() {
		clearMaceEnv(t)
		dir := t.TempDir()
		site := writeFile(t, filepath.Join(dir, "site.yaml"), `
history_file: /tmp/site_history
max_history: 50
modules_path:
  - /opt/a
  - /opt/b
init_files: [start.mac]
prompt: "site> "
valid_commands: [plot]
`)
		c := parsedConfig(t, "-env", "", "-config", site)
		cv.So(c.ValidateConfig(), cv.ShouldBeNil)
		cv.So(c.HistoryFile, cv.ShouldEqual, "/tmp/site_history")
		cv.So(c.MaxHistory, cv.ShouldEqual, 50)
		cv.So(c.ModuleDirs(), cv.ShouldResemble, []string{"/opt/a", "/opt/b"})
		cv.So(c.InitFiles, cv.ShouldResemble, []string{"start.mac"})
		cv.So(c.Prompt, cv.ShouldEqual, "site> ")
		cv.So(c.ValidCommands, cv.ShouldResemble, []string{"plot"})
	})

	cv.Convey(`the environment overrides the site file and flags override both`, t, func() {
		clearMaceEnv(t)
		dir := t.TempDir()
		site := writeFile(t, filepath.Join(dir, "site.yaml"), "max_history: 50\nhistory_file: /tmp/site_history\n")
		t.Setenv("MACE_MAXHISTORY", "75")
		t.Setenv("MACE_HISTORY", "/tmp/env_history")

		c := parsedConfig(t, "-env", "", "-config", site, "-history", "/tmp/flag_history")
		cv.So(c.ValidateConfig(), cv.ShouldBeNil)
		cv.So(c.MaxHistory, cv.ShouldEqual, 75)
		cv.So(c.HistoryFile, cv.ShouldEqual, "/tmp/flag_history")
	})

	cv.Convey(`a dotenv file supplies MACE_* settings`, t, func() {
		clearMaceEnv(t)
		dir := t.TempDir()
		envFile := writeFile(t, filepath.Join(dir, "mace.env"), "MACE_PROMPT=\"dot> \"\nMACE_PATH=/srv/mods\n")
		c := parsedConfig(t, "-env", envFile)
		cv.So(c.ValidateConfig(), cv.ShouldBeNil)
		cv.So(c.Prompt, cv.ShouldEqual, "dot> ")
		cv.So(c.ModuleDirs(), cv.ShouldResemble, []string{"/srv/mods"})
	})

	cv.Convey(`bad settings are reported`, t, func() {
		clearMaceEnv(t)
		t.Setenv("MACE_MAXHISTORY", "lots")
		c := parsedConfig(t, "-env", "")
		cv.So(c.ValidateConfig(), cv.ShouldNotBeNil)

		clearMaceEnv(t)
		c = parsedConfig(t, "-env", "", "-maxhistory", "-3")
		cv.So(c.ValidateConfig(), cv.ShouldNotBeNil)

		dir := t.TempDir()
		bad := writeFile(t, filepath.Join(dir, "bad.yaml"), "max_history: [not, a, number]\n")
		c = parsedConfig(t, "-env", "", "-config", bad)
		cv.So(c.ValidateConfig(), cv.ShouldNotBeNil)

		c = parsedConfig(t, "-env", "", "-config", filepath.Join(dir, "missing.yaml"))
		cv.So(c.ValidateConfig(), cv.ShouldNotBeNil)
	})
}

func Test081_ConfigApply(t *testing.T) {

	cv.Convey(`Apply extends _sys.path, the command list and the prompt`, t, func() {
		clearMaceEnv(t)
		c := parsedConfig(t, "-env", "", "-path", "/m1"+string(os.PathListSeparator)+"/m2")
		c.ValidCommands = []string{"plot"}
		cv.So(c.ValidateConfig(), cv.ShouldBeNil)

		env, _ := newTestEnv()
		c.Apply(env)
		c.Apply(env)
		cv.So(env.SymbolTable().ModulePath(), cv.ShouldResemble, []string{".", "/m1", "/m2"})
		cv.So(env.Input().Prompt, cv.ShouldEqual, DefaultPrompt)

		env.Input().Put("plot x", "<test>", 1, false)
		u, ok := env.Input().Get()
		cv.So(ok, cv.ShouldBeTrue)
		cv.So(u.Text, cv.ShouldEqual, "plot(x)")
	})
}
