package main

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"taskflow/client"
	"taskflow/utilities"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envConfigDir = "TASKFLOW_CONFIG_DIR"

var errNotSignedIn = errors.New("not signed in, run 'taskflow login' first")

// app guarda as flags globais e o que é montado no PersistentPreRunE.
type app struct {
	server    string
	configDir string
	output    string
	debug     bool

	in      io.Reader
	out     io.Writer
	cfg     *viper.Viper
	api     *client.Client
	session *client.AuthSession
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in, out: out}

	root := &cobra.Command{
		Use:               "taskflow",
		Short:             "Shared workspaces and tasks from the terminal",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetIn(in)
	root.SetOut(out)

	root.PersistentFlags().StringVar(&a.server, "server", "", "API base URL (default from config.yaml or "+keyServerEnv+")")
	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (default: $"+envConfigDir+" or the user config dir)")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", formatTable, "output format: table, json or yaml")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "enable debug logging")

	root.AddCommand(
		a.signupCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.workspacesCmd(),
		a.tasksCmd(),
		a.membersCmd(),
		a.watchCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	level := "warn"
	if a.debug {
		level = "debug"
	}
	utilities.InitLogger(level, "text")
	utilities.SetOutput(cmd.ErrOrStderr())

	if err := validFormat(a.output); err != nil {
		return err
	}

	dir, err := a.resolveConfigDir()
	if err != nil {
		return err
	}
	a.configDir = dir

	cfg, err := loadConfig(dir)
	if err != nil {
		return err
	}
	if a.server != "" {
		cfg.Set(cfgKeyServer, a.server)
	}
	a.cfg = cfg

	a.api, err = client.New(cfg.GetString(cfgKeyServer), nil)
	if err != nil {
		return err
	}
	a.session, err = client.NewAuthSession(a.api, client.NewFileSessionStore(dir), client.RefreshConfig{
		APIKey:   cfg.GetString(cfgKeyAPIKey),
		TokenURL: cfg.GetString(cfgKeyTokenURL),
	})
	return err
}

// resolveConfigDir: --config-dir > $TASKFLOW_CONFIG_DIR > <user config dir>/taskflow.
func (a *app) resolveConfigDir() (string, error) {
	if a.configDir != "" {
		return a.configDir, nil
	}
	if dir := os.Getenv(envConfigDir); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "taskflow"), nil
}

// authed devolve o cliente autenticado pela sessão salva.
func (a *app) authed() (*client.Client, *client.Session, error) {
	cur := a.session.Current()
	if cur == nil {
		return nil, nil, errNotSignedIn
	}
	return a.session.Client(), cur, nil
}
