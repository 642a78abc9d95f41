package main

import (
	"github.com/spf13/cobra"

	"github.com/eclipse-openj9/openj9-omr-sub008/config"
)

func init() {
	rootCmd.AddCommand(newWindowsCmd())
}

type windowInfo struct {
	Low  string `json:"low"`
	High string `json:"high"`
	Size uint64 `json:"size"`
}

func newWindowsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "windows",
		Short: "List the address windows searched for sub-4GB regions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			opts := cfg.Memory32.Options()

			infos := make([]windowInfo, 0, len(opts.Windows))
			for _, win := range opts.Windows {
				infos = append(infos, windowInfo{
					Low:  win.Low.String(),
					High: win.High.String(),
					Size: uint64(win.High-win.Low) + 1,
				})
			}
			if jsonOut {
				return printJSON(w, infos)
			}
			for i, info := range infos {
				printInfo(w, "%d  %-12s %-12s %v\n", i, info.Low, info.High, config.Size(info.Size))
			}
			if opts.Unconstrained {
				printInfo(w, "unconstrained: windows are not used\n")
			}
			return nil
		},
	}
}
