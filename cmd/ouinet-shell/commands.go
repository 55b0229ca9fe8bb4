package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeanhaley32/ouinet-shell/internal/args"
	"github.com/jeanhaley32/ouinet-shell/internal/assets"
	"github.com/jeanhaley32/ouinet-shell/internal/certauth"
	"github.com/jeanhaley32/ouinet-shell/internal/config"
	"github.com/jeanhaley32/ouinet-shell/internal/constants"
	"github.com/jeanhaley32/ouinet-shell/internal/credentials"
	"github.com/jeanhaley32/ouinet-shell/internal/embedded"
	"github.com/jeanhaley32/ouinet-shell/internal/engine"
	"github.com/jeanhaley32/ouinet-shell/internal/metrics"
	"github.com/jeanhaley32/ouinet-shell/internal/state"
	"github.com/jeanhaley32/ouinet-shell/internal/terminal"
)

// loadEngine binds the process-wide client engine.
func loadEngine(cmd *cobra.Command) (engine.Engine, error) {
	binary, err := cmd.Flags().GetString("engine-binary")
	if err != nil {
		return nil, fmt.Errorf("invalid engine-binary flag: %w", err)
	}
	return engine.Load(func() (engine.Engine, error) {
		return engine.NewProcess(engine.ProcessOptions{
			Binary: binary,
			Stdout: os.Stderr,
			Stderr: os.Stderr,
			Logger: slog.Default(),
		}), nil
	})
}

// prepare builds the Config for cmd, materializing the install directory.
func prepare(cmd *cobra.Command, eng engine.Engine, recorder metrics.Recorder) (*settings, config.Config, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, config.Config{}, err
	}
	authority := certauth.New(eng, slog.Default())
	materializer := assets.NewMaterializer(embedded.Assets(), slog.Default(), recorder)
	b, err := s.newBuilder(cmd, materializer, authority)
	if err != nil {
		return nil, config.Config{}, err
	}
	return s, b.Build(), nil
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Prepare the install directory",
		Long: `Creates the install directory, the client's CA root certificate and the
bundled assets the client needs.

Output is in KEY=VALUE format for easy parsing:
  INSTALL_DIR=<path>
  CA_ROOT_CERT=<path>`,
		RunE: runInit,
	}
	cmd.Flags().String("engine-binary", "", "Client executable (default ouinet-client in PATH)")
	addConfigFlags(cmd)
	return cmd
}

func runInit(cmd *cobra.Command, _ []string) error {
	eng, err := loadEngine(cmd)
	if err != nil {
		return err
	}
	_, cfg, err := prepare(cmd, eng, nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "INSTALL_DIR=%s\n", cfg.InstallDir())
	fmt.Fprintf(out, "CA_ROOT_CERT=%s\n", cfg.CARootCertPath())
	if p := cfg.TLSCACertStorePath(); p != "" {
		fmt.Fprintf(out, "TLS_CA_CERT_STORE=%s\n", p)
	}
	if p := cfg.PluggableTransportPath(); p != "" {
		fmt.Fprintf(out, "PLUGGABLE_TRANSPORT_DIR=%s\n", p)
	}
	if cfg.CARootCertPath() == "" {
		return errors.New("CA root certificate could not be generated")
	}
	return nil
}

func newArgsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "args",
		Short: "Print the client argument vector",
		Long:  "Prints the arguments the client would be started with, one per line.",
		RunE:  runArgs,
	}
	cmd.Flags().Bool("dry-run", false, "Do not touch the install directory")
	cmd.Flags().String("engine-binary", "", "Client executable (default ouinet-client in PATH)")
	addConfigFlags(cmd)
	return cmd
}

func runArgs(cmd *cobra.Command, _ []string) error {
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return fmt.Errorf("invalid dry-run flag: %w", err)
	}

	var cfg config.Config
	if dryRun {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		b, err := s.newBuilder(cmd, nil, nil)
		if err != nil {
			return err
		}
		cfg = b.Snapshot()
	} else {
		eng, err := loadEngine(cmd)
		if err != nil {
			return err
		}
		if _, cfg, err = prepare(cmd, eng, nil); err != nil {
			return err
		}
	}

	argv, searchPaths := args.ToArgs(cfg)
	out := cmd.OutOrStdout()
	for _, a := range argv {
		fmt.Fprintln(out, a)
	}
	for _, p := range searchPaths {
		fmt.Fprintf(out, "# search path: %s\n", p)
	}
	return nil
}

func newStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop a running 'ouinet-shell run'",
		RunE:  runStop,
	}
	cmd.Flags().Duration("wait", 30*time.Second, "How long to wait for the shell to exit (0 to not wait)")
	return cmd
}

func runStop(cmd *cobra.Command, _ []string) error {
	wait, err := cmd.Flags().GetDuration("wait")
	if err != nil {
		return fmt.Errorf("invalid wait flag: %w", err)
	}
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}

	st := state.NewDetector(s.installDir).Detect()
	if !st.Running() {
		fmt.Fprintln(cmd.OutOrStdout(), "STATUS=not_running")
		return nil
	}

	proc, err := os.FindProcess(st.RunningPid)
	if err != nil {
		return fmt.Errorf("failed to find process %d: %w", st.RunningPid, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Stopping ouinet-shell (pid %d)...\n", st.RunningPid)
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", st.RunningPid, err)
	}

	deadline := time.Now().Add(wait)
	for wait > 0 && time.Now().Before(deadline) {
		if !state.NewDetector(s.installDir).Detect().Running() {
			fmt.Fprintln(cmd.OutOrStdout(), "STATUS=stopped")
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	if wait > 0 {
		return fmt.Errorf("ouinet-shell (pid %d) did not exit within %s", st.RunningPid, wait)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "STATUS=stopping")
	return nil
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show install directory status",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	st := state.NewDetector(s.installDir).Detect()
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Ouinet Shell Status")
	fmt.Fprintln(out, "===================")
	fmt.Fprintln(out)

	if !st.DirExists {
		fmt.Fprintf(out, "Install dir:  %s (not found)\n", st.InstallDir)
		fmt.Fprintln(out, "\nRun 'ouinet-shell init' to prepare it.")
		return nil
	}
	fmt.Fprintf(out, "Install dir:  %s\n", st.InstallDir)
	fmt.Fprintf(out, "Initialized:  %s\n", yesNo(st.Initialized()))
	fmt.Fprintf(out, "CA root:      %s\n", present(st.CARootCertExists && st.CARootKeyExists))
	fmt.Fprintf(out, "CA bundle:    %s\n", present(st.TLSCACertBundle))
	fmt.Fprintf(out, "Injector TLS: %s\n", present(st.InjectorCertExists))

	switch {
	case !st.TransportExists:
		fmt.Fprintln(out, "Transport:    missing")
	case !st.TransportExecutable:
		fmt.Fprintln(out, "Transport:    present (not executable)")
	default:
		fmt.Fprintln(out, "Transport:    present")
	}

	if st.CredentialEndpoint != "" {
		fmt.Fprintf(out, "Credentials:  stored for %s\n", st.CredentialEndpoint)
	} else {
		fmt.Fprintln(out, "Credentials:  none")
	}

	if st.Running() {
		fmt.Fprintf(out, "Shell:        running (pid %d)\n", st.RunningPid)
	} else {
		fmt.Fprintln(out, "Shell:        not running")
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func present(b bool) string {
	if b {
		return "present"
	}
	return "missing"
}

func newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage the stored injector credential",
	}

	getCmd := &cobra.Command{
		Use:   "get [endpoint]",
		Short: "Show the stored credential record",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCredentialsGet,
	}
	getCmd.Flags().Bool("show", false, "Print the credential instead of masking it")

	setCmd := &cobra.Command{
		Use:   "set <endpoint>",
		Short: "Store the credential for an injector endpoint",
		Long: `Stores the credential for an injector endpoint, replacing any previous record.
The credential is read from stdin (--stdin), $OUINET_SHELL_CREDENTIALS, or an
interactive prompt, in that order.`,
		Args: cobra.ExactArgs(1),
		RunE: runCredentialsSet,
	}
	setCmd.Flags().Bool("stdin", false, "Read the credential from stdin")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the stored credential",
		Args:  cobra.NoArgs,
		RunE:  runCredentialsClear,
	}

	cmd.AddCommand(getCmd, setCmd, clearCmd)
	return cmd
}

func credentialStore(cmd *cobra.Command) (*credentials.Store, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	return credentials.NewStore(filepath.Join(s.installDir, constants.CredentialsFile)), nil
}

func runCredentialsGet(cmd *cobra.Command, argv []string) error {
	show, err := cmd.Flags().GetBool("show")
	if err != nil {
		return fmt.Errorf("invalid show flag: %w", err)
	}
	store, err := credentialStore(cmd)
	if err != nil {
		return err
	}

	endpoint, credential, ok := store.Record()
	if len(argv) == 1 {
		credential, ok = store.Get(argv[0])
		endpoint = argv[0]
	}
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "STATUS=none")
		return nil
	}

	if !show {
		credential = mask(credential)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ENDPOINT=%s\n", endpoint)
	fmt.Fprintf(out, "CREDENTIAL=%s\n", credential)
	return nil
}

// mask keeps the user part of user:password.
func mask(credential string) string {
	if user, _, found := strings.Cut(credential, ":"); found {
		return user + ":****"
	}
	return "****"
}

func runCredentialsSet(cmd *cobra.Command, argv []string) error {
	useStdin, err := cmd.Flags().GetBool("stdin")
	if err != nil {
		return fmt.Errorf("invalid stdin flag: %w", err)
	}
	store, err := credentialStore(cmd)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(store.Path()), constants.DirPermissions); err != nil {
		return fmt.Errorf("failed to create install directory: %w", err)
	}

	secret, err := terminal.ReadSecretMultiSource(useStdin, "Credential (user:password): ")
	if err != nil {
		return fmt.Errorf("credential error: %w", err)
	}
	defer secret.Clear()
	if secret.Len() == 0 {
		return errors.New("empty credential")
	}

	if err := store.Set(argv[0], secret.String()); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "STATUS=stored")
	fmt.Fprintf(cmd.OutOrStdout(), "ENDPOINT=%s\n", argv[0])
	return nil
}

func runCredentialsClear(cmd *cobra.Command, _ []string) error {
	store, err := credentialStore(cmd)
	if err != nil {
		return err
	}
	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "STATUS=cleared")
	return nil
}
