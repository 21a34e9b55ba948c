package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/cloudboss/cloudboss/internal/cloud"
	"github.com/cloudboss/cloudboss/internal/config"
	"github.com/cloudboss/cloudboss/internal/provider"
	"github.com/cloudboss/cloudboss/internal/tokenfile"
)

// Token metadata keys written at login.
const (
	metaLogin = "login"
	metaName  = "name"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Verify and save an access token for the provider",
		Long: `Verify an access token against the provider and save it for later
commands. The token comes from --token or from the provider's token
environment variable (CLOUDBOSS_TOKEN_<PROVIDER> by default).

With client_id set for gdrive or onedrive, --device runs the OAuth device
code flow instead: open the printed URL, enter the code, and the resulting
token is refreshed automatically from then on. --refresh-token saves a
refresh token obtained elsewhere for the same purpose.

S3 uses access keys from the environment and has no login step.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}

	cmd.Flags().String("token", "", "access token")
	cmd.Flags().String("refresh-token", "", "OAuth refresh token (gdrive, onedrive)")
	cmd.Flags().Bool("device", false, "sign in with the OAuth device code flow (gdrive, onedrive)")
	cmd.MarkFlagsMutuallyExclusive("device", "token")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved token for the provider",
		Args:  cobra.NoArgs,
		RunE:  runLogout,
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Display the authenticated account and storage usage",
		Args:  cobra.NoArgs,
		RunE:  runInfo,
	}
}

// loginOutput is the JSON schema for `login --json`.
type loginOutput struct {
	Provider string `json:"provider"`
	Login    string `json:"login"`
	Name     string `json:"name"`
}

func runLogin(cmd *cobra.Command, _ []string) error {
	cc := cliContextFrom(cmd.Context())
	ctx := cmd.Context()

	if cc.Cfg.Provider == config.ProviderS3 {
		return fmt.Errorf("s3 reads credentials from %s and %s; there is nothing to log in to",
			cc.Cfg.S3.AccessKeyEnv, cc.Cfg.S3.SecretKeyEnv)
	}

	tok, err := loginToken(cmd, cc)
	if err != nil {
		return err
	}

	path := config.TokenPath(cc.Cfg.Provider)
	if path == "" {
		return fmt.Errorf("cannot determine token path for %s", cc.Cfg.Provider)
	}

	cc.Logger.Info("login started", slog.String("provider", cc.Cfg.Provider))

	// Verify the candidate token, not a previously saved one.
	rc := *cc.Cfg
	rc.Token = tok.AccessToken

	p, err := newProvider(ctx, &rc, nil, cc.Logger)
	if err != nil {
		return err
	}

	acct, err := p.AccountInfo(ctx)
	if err != nil {
		return err
	}

	tf := &tokenfile.File{
		Provider: cc.Cfg.Provider,
		Token:    tok,
		Meta:     map[string]string{metaLogin: acct.Login, metaName: acct.DisplayName},
	}

	if err := tokenfile.Save(path, tf); err != nil {
		return err
	}

	cc.Logger.Info("login successful",
		slog.String("provider", cc.Cfg.Provider),
		slog.String("login", acct.Login),
		slog.String("path", path),
	)

	if cc.Flags.JSON {
		return printJSON(os.Stdout, loginOutput{
			Provider: cc.Cfg.Provider,
			Login:    acct.Login,
			Name:     acct.DisplayName,
		})
	}

	cc.Statusf("Logged in to %s as %s.\n", cc.Cfg.Provider, accountLabel(acct))

	return nil
}

// refreshSavedMeta updates the account details cached in the saved token
// file when the provider now reports different ones. Failures only log:
// the cache is informational.
func refreshSavedMeta(cc *CLIContext, acct *cloud.AccountInfo) {
	if cc.Cfg.Token != "" {
		return
	}

	path := config.TokenPath(cc.Cfg.Provider)

	tf, err := tokenfile.Load(path)
	if err != nil || tf == nil {
		return
	}

	if tf.Meta[metaLogin] == acct.Login && tf.Meta[metaName] == acct.DisplayName {
		return
	}

	err = tokenfile.MergeMeta(path, map[string]string{metaLogin: acct.Login, metaName: acct.DisplayName})
	if err != nil {
		cc.Logger.Warn("updating saved account details", slog.String("error", err.Error()))
		return
	}

	cc.Logger.Debug("saved account details updated", slog.String("login", acct.Login))
}

// loginToken obtains the token to verify and save: from the device code
// flow with --device, otherwise from --token or the token variable.
func loginToken(cmd *cobra.Command, cc *CLIContext) (*oauth2.Token, error) {
	device, _ := cmd.Flags().GetBool("device")
	refresh, _ := cmd.Flags().GetString("refresh-token")

	if device {
		cfg := provider.OAuthConfig(cc.Cfg)
		if cfg == nil {
			return nil, fmt.Errorf("device login needs client_id in the [%s] config table", cc.Cfg.Provider)
		}

		return provider.DeviceLogin(cmd.Context(), cfg, nil, func(dc provider.DeviceCode) {
			// Shown even with --quiet: the user cannot finish without it.
			fmt.Fprintf(os.Stderr, "To sign in, visit: %s\n", dc.VerificationURI)
			fmt.Fprintf(os.Stderr, "Enter code: %s\n", dc.UserCode)
		}, cc.Logger)
	}

	token, _ := cmd.Flags().GetString("token")
	if token == "" {
		token = cc.Cfg.Token
	}

	if token == "" {
		return nil, fmt.Errorf("a token is required: pass --token or set %s", cc.Cfg.TokenEnv())
	}

	return &oauth2.Token{AccessToken: token, RefreshToken: refresh}, nil
}

// logoutOutput is the JSON schema for `logout --json`.
type logoutOutput struct {
	Provider string `json:"provider"`
	Removed  bool   `json:"removed"`
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cc := cliContextFrom(cmd.Context())

	path := config.TokenPath(cc.Cfg.Provider)
	if path == "" {
		return fmt.Errorf("cannot determine token path for %s", cc.Cfg.Provider)
	}

	removed, err := tokenfile.Delete(path)
	if err != nil {
		return err
	}

	cc.Logger.Info("logout", slog.String("provider", cc.Cfg.Provider), slog.Bool("removed", removed))

	if cc.Flags.JSON {
		return printJSON(os.Stdout, logoutOutput{Provider: cc.Cfg.Provider, Removed: removed})
	}

	if removed {
		cc.Statusf("Logged out of %s.\n", cc.Cfg.Provider)
	} else {
		cc.Statusf("No saved token for %s.\n", cc.Cfg.Provider)
	}

	return nil
}

// infoOutput is the JSON schema for `info --json`. TotalBytes is null when
// the provider does not report a quota.
type infoOutput struct {
	Provider   string `json:"provider"`
	Login      string `json:"login"`
	Name       string `json:"name"`
	UsedBytes  int64  `json:"used_bytes"`
	TotalBytes *int64 `json:"total_bytes"`
}

func runInfo(cmd *cobra.Command, _ []string) error {
	cc := cliContextFrom(cmd.Context())
	ctx := cmd.Context()

	s, err := NewSession(ctx, cc, sessionOptions{})
	if err != nil {
		return err
	}

	acct, err := s.Provider.AccountInfo(ctx)
	if err != nil {
		return err
	}

	refreshSavedMeta(cc, acct)

	if cc.Flags.JSON {
		out := infoOutput{
			Provider:  s.Provider.Name(),
			Login:     acct.Login,
			Name:      acct.DisplayName,
			UsedBytes: acct.UsedBytes,
		}

		if acct.TotalBytes != cloud.QuotaUnknown {
			out.TotalBytes = &acct.TotalBytes
		}

		return printJSON(os.Stdout, out)
	}

	fmt.Printf("Provider: %s\n", s.Provider.Name())
	fmt.Printf("Account:  %s\n", accountLabel(acct))
	fmt.Printf("Usage:    %s\n", formatUsage(acct))

	return nil
}

// accountLabel renders "login (name)", dropping whichever part is empty.
func accountLabel(acct *cloud.AccountInfo) string {
	switch {
	case acct.Login == "" && acct.DisplayName == "":
		return "(unknown)"
	case acct.DisplayName == "" || acct.DisplayName == acct.Login:
		return acct.Login
	case acct.Login == "":
		return acct.DisplayName
	default:
		return fmt.Sprintf("%s (%s)", acct.Login, acct.DisplayName)
	}
}

// formatUsage renders used/total space, or only the used space when the
// provider does not report a quota.
func formatUsage(acct *cloud.AccountInfo) string {
	if acct.TotalBytes == cloud.QuotaUnknown {
		return formatSize(acct.UsedBytes) + " used"
	}

	return fmt.Sprintf("%s / %s", formatSize(acct.UsedBytes), formatSize(acct.TotalBytes))
}
