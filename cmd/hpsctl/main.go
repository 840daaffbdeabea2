package main

import (
    "log"

    "github.com/spf13/cobra"

    hpscli "github.com/amirimatin/go-meshpubsub/pkg/cli"
)

func main() {
    if err := newRoot().Execute(); err != nil {
        log.Fatal(err)
    }
}

func newRoot() *cobra.Command {
    root := &cobra.Command{
        Use:           "hpsctl",
        Short:         "mesh pub/sub node and management CLI",
        SilenceUsage:  true,
        SilenceErrors: true,
    }
    hpscli.AddAll(root)
    return root
}
