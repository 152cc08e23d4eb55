package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/srg/uwbctl/internal/ranging"
	"github.com/srg/uwbctl/internal/uwb"
	"gopkg.in/yaml.v3"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Acquire a session and print local ranging info",
	Long: `Acquires a session scope for --role and prints the local address,
channel and preamble, plus the ranging capabilities of a controlee.

Examples:
  uwbctl info --role controller
  uwbctl info --role controlee --format yaml`,
	Args: cobra.NoArgs,
	RunE: runInfo,
}

var (
	infoRole   string
	infoFormat string
)

func init() {
	infoCmd.Flags().StringVar(&infoRole, "role", "controller", "Local role: controller or controlee")
	infoCmd.Flags().StringVar(&infoFormat, "format", "text", "Output format: text or yaml")
}

func runInfo(cmd *cobra.Command, _ []string) error {
	role, err := uwb.ParseRole(infoRole)
	if err != nil {
		return err
	}
	format := strings.ToLower(infoFormat)
	if format != "text" && format != "yaml" {
		return fmt.Errorf("invalid format %q: use text or yaml", infoFormat)
	}

	s, err := openSession(cmd, "")
	if err != nil {
		return err
	}
	defer s.close()

	cmd.SilenceUsage = true

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.assignRole(ctx, cmd, role); err != nil {
		return err
	}
	return writeInfo(cmd.OutOrStdout(), s.manager.LocalInfo(), format)
}

func writeInfo(w io.Writer, info ranging.LocalInfo, format string) error {
	if format != "yaml" {
		_, err := fmt.Fprintln(w, info.String())
		return err
	}

	// a mapping node keeps the field order of LocalInfo
	node := &yaml.Node{Kind: yaml.MappingNode}
	if !info.Initialized {
		node.Content = append(node.Content, scalar("status"), scalar(ranging.NotInitialized))
	}
	for pair := info.Fields().Oldest(); pair != nil; pair = pair.Next() {
		key := strings.ToLower(strings.ReplaceAll(pair.Key, " ", "_"))
		node.Content = append(node.Content, scalar(key), scalar(pair.Value))
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return err
	}
	return enc.Close()
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: v}
}
