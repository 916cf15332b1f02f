package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/phonedeals/internal/kernel"
	"github.com/shashiranjanraj/phonedeals/pkg/auth"
)

var (
	exportBuyer string
	exportOut   string
)

// phonedeals sales:export
var salesExportCmd = &cobra.Command{
	Use:   "sales:export",
	Short: "Write every sale as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bootDB()
		if err != nil {
			return err
		}
		k, err := kernel.New(kernel.Deps{DB: db})
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if exportOut != "" && exportOut != "-" {
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		return k.Orders.ExportSales(cmd.Context(), w, exportBuyer)
	},
}

// phonedeals admin:hash prints a bcrypt hash for ADMIN_PASSWORD_HASH. The
// password is read from the first argument or, when absent, from stdin.
var adminHashCmd = &cobra.Command{
	Use:   "admin:hash [password]",
	Short: "Hash an admin password for ADMIN_PASSWORD_HASH",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var plain string
		if len(args) == 1 {
			plain = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			plain = strings.TrimRight(line, "\r\n")
		}
		if plain == "" {
			return errors.New("admin:hash: empty password")
		}
		hash, err := auth.HashPassword(plain)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	salesExportCmd.Flags().StringVar(&exportBuyer, "buyer", "", "only sales whose buyer name or email matches")
	salesExportCmd.Flags().StringVarP(&exportOut, "out", "o", "-", "output file (- for stdout)")
}
