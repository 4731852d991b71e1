package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/addonctl/internal/logger"
	"github.com/glorpus-work/addonctl/pkg/errutils"
	"github.com/glorpus-work/addonctl/pkg/fsutil"
	"github.com/glorpus-work/addonctl/pkg/hook"
	"github.com/spf13/cobra"
)

// NewHookCmd creates the hook command with subcommands.
func NewHookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hook",
		Short: "Manage hook scripts",
		Long: `Hook scripts are Tengo scripts run around installs and removals. Configure
them with 'addonctl config set hooks.post_install PATH'.`,
	}

	cmd.AddCommand(newHookTemplateCmd())

	return cmd
}

func newHookTemplateCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "template TYPE [FILE]",
		Short: "Write a hook script template",
		Long: fmt.Sprintf(`Print a commented hook script template, or write it to FILE.
TYPE is one of: %s.`, hookTypeNames()),
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := hook.HookType(args[0])
			if !t.Valid() {
				return fmt.Errorf("unknown hook type %q, must be one of: %s", args[0], hookTypeNames())
			}
			content := hook.HookTemplate(t)
			if len(args) == 1 {
				_, _ = fmt.Fprint(cmd.OutOrStdout(), content)
				return nil
			}

			path, err := filepath.Abs(args[1])
			if err != nil {
				return fmt.Errorf("invalid output file: %w", err)
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s: %w", path, errutils.ErrFileExists)
			}
			if err := fsutil.EnsureFileDir(path); err != nil {
				return err
			}
			if err := fsutil.WriteFileAtomic(path, []byte(content), fsutil.FileModeDefault); err != nil {
				return err
			}
			logger.Success("Hook template written", logger.Fields{"path": path, "type": string(t)})
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite FILE if it exists")

	cmd.Example = `  # Print a post-install template
  addonctl hook template post-install

  # Write it to a file and enable it
  addonctl hook template post-install ~/.config/addonctl/post-install.tengo
  addonctl config set hooks.post_install ~/.config/addonctl/post-install.tengo`

	return cmd
}

func hookTypeNames() string {
	names := make([]string, 0, len(hook.Types))
	for _, t := range hook.Types {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}
