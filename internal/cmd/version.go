package cmd

import (
	"fmt"
	"runtime"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/spf13/cobra"

	"github.com/panelops/panelctl/internal/output"
)

var extended bool

type versionReport struct {
	Name     string `json:"name" yaml:"name"`
	Version  string `json:"version" yaml:"version"`
	Commit   string `json:"commit,omitempty" yaml:"commit,omitempty"`
	Built    string `json:"built,omitempty" yaml:"built,omitempty"`
	Go       string `json:"go,omitempty" yaml:"go,omitempty"`
	Platform string `json:"platform,omitempty" yaml:"platform,omitempty"`
	Gofulmen string `json:"gofulmen,omitempty" yaml:"gofulmen,omitempty"`
	Crucible string `json:"crucible,omitempty" yaml:"crucible,omitempty"`
}

func buildVersionReport(name string, full bool) versionReport {
	report := versionReport{Name: name, Version: versionInfo.Version}
	if !full {
		return report
	}
	libs := crucible.GetVersion()
	report.Commit = versionInfo.Commit
	report.Built = versionInfo.BuildDate
	report.Go = runtime.Version()
	report.Platform = runtime.GOOS + "/" + runtime.GOARCH
	report.Gofulmen = libs.Gofulmen
	report.Crucible = libs.Crucible
	return report
}

func versionView(report versionReport) *output.View {
	view := &output.View{Data: report, Title: report.Name, Header: []string{"Field", "Value"}}
	for _, row := range [][2]string{
		{"Version", report.Version},
		{"Commit", report.Commit},
		{"Built", report.Built},
		{"Go", report.Go},
		{"Platform", report.Platform},
		{"Gofulmen", report.Gofulmen},
		{"Crucible", report.Crucible},
	} {
		if row[1] != "" {
			view.Rows = append(view.Rows, []string{row[0], row[1]})
		}
	}
	return view
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  "Print version information. Use --extended for build, Go and Fulmen library details.",
	RunE: func(cmd *cobra.Command, args []string) error {
		report := buildVersionReport(GetAppIdentity().BinaryName, extended)

		format, err := resolveOutputFormat(cmd)
		if err != nil {
			return err
		}
		if !extended && format == output.FormatTable {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", report.Name, report.Version)
			return err
		}
		return render(cmd, versionView(report))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVarP(&extended, "extended", "e", false, "show extended version information")
}
