package cmd

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/foomo/catalogserver/catalog"
	"github.com/foomo/catalogserver/client"
	"github.com/foomo/catalogserver/pkg/fetch"
	"github.com/foomo/catalogserver/requests"
	keelhttp "github.com/foomo/keel/net/http"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NewRemoteCommand groups the commands talking to a running catalog server
func NewRemoteCommand() *cobra.Command {
	v := newViper()
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Manage the catalog of a running server",
	}

	addServerFlag(cmd.PersistentFlags(), v)
	addOutputFlag(cmd.PersistentFlags(), v)
	addTimeoutFlag(cmd.PersistentFlags(), v)

	cmd.AddCommand(
		newRemoteAddCommand(v),
		newRemoteRemoveCommand(v),
		newRemoteSearchCommand(v),
		newRemoteListCommand(v),
		newRemoteExportCommand(v),
		newRemoteImportCommand(v),
		newRemoteResetCommand(v),
		newRemoteStatsCommand(v),
	)

	return cmd
}

func newRemoteAddCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <path> <file-or-url>",
		Short: "Add or update an example",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, v, func(ctx context.Context, c *client.Client) error {
				path, location := args[0], args[1]
				var (
					request = &requests.AddEntry{
						Path:        path,
						DisplayName: displayNameFlag(v),
					}
					sceneInfo *catalog.SceneInfo
				)
				if remoteFetchFlag(v) {
					request.URL = location
				} else {
					fetcher := fetch.New(zap.L(),
						fetch.WithLocalFiles(true),
						fetch.WithHTTPClient(keelhttp.NewHTTPClient(
							keelhttp.HTTPClientWithTimeout(timeoutFlag(v)),
						)),
					)
					content, err := fetcher.Fetch(ctx, location)
					if err != nil {
						return err
					}
					request.Content = content
					sceneInfo = catalog.DeriveSceneInfo(content)
				}

				tree, err := c.AddEntry(ctx, request)
				if err != nil {
					return err
				}
				return printOutput(cmd.OutOrStdout(), v, addedLeaves(tree, path, sceneInfo, request.DisplayName))
			})
		},
	}
	addDisplayNameFlag(cmd.Flags(), v)
	addRemoteFetchFlag(cmd.Flags(), v)
	return cmd
}

func newRemoteRemoveCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <path>",
		Short: "Remove an example",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, v, func(ctx context.Context, c *client.Client) error {
				removed, err := c.RemoveEntry(ctx, args[0])
				if err != nil {
					return err
				}
				if !removed {
					zap.L().Warn("no example with that path", zap.String("path", args[0]))
				}
				return printOutput(cmd.OutOrStdout(), v, map[string]bool{"removed": removed})
			})
		},
	}
}

func newRemoteSearchCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search examples by name, path or scene name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, v, func(ctx context.Context, c *client.Client) error {
				leaves, err := c.Search(ctx, args[0])
				if err != nil {
					return err
				}
				return printOutput(cmd.OutOrStdout(), v, leaves)
			})
		},
	}
}

func newRemoteListCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List user added examples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, v, func(ctx context.Context, c *client.Client) error {
				leaves, err := c.ListUserAdded(ctx)
				if err != nil {
					return err
				}
				return printOutput(cmd.OutOrStdout(), v, leaves)
			})
		},
	}
}

func newRemoteExportCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write the whole catalog as json to file or stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, v, func(ctx context.Context, c *client.Client) error {
				snapshot, err := c.ExportSnapshot(ctx)
				if err != nil {
					return err
				}
				if len(args) == 0 || args[0] == "-" {
					_, err = io.WriteString(cmd.OutOrStdout(), snapshot+"\n")
					return err
				}
				return os.WriteFile(args[0], []byte(snapshot), 0600)
			})
		},
	}
}

func newRemoteImportCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the whole catalog with an exported snapshot, - reads stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return errors.Wrap(err, "failed to read snapshot")
			}
			return withClient(cmd, v, func(ctx context.Context, c *client.Client) error {
				return c.ImportSnapshot(ctx, string(data))
			})
		},
	}
}

func newRemoteResetCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop all changes and reload the catalog document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, v, func(ctx context.Context, c *client.Client) error {
				return c.Reset(ctx)
			})
		},
	}
}

func newRemoteStatsCommand(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print catalog counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, v, func(ctx context.Context, c *client.Client) error {
				stats, err := c.Stats(ctx)
				if err != nil {
					return err
				}
				return printOutput(cmd.OutOrStdout(), v, stats)
			})
		},
	}
}

// addedLeaves finds the leaf AddEntry created or updated: the first leaf of
// the target category matching the path or the display name, like the
// upsert does. Without content to derive the name from it falls back to the
// most recently touched leaf.
func addedLeaves(tree *catalog.Node, path string, sceneInfo *catalog.SceneInfo, displayName string) []*catalog.Node {
	segments := catalog.SplitPath(path)
	if tree == nil || len(segments) == 0 {
		return []*catalog.Node{}
	}
	category := tree
	for _, name := range segments[:len(segments)-1] {
		if category = category.ChildCategory(name); category == nil {
			return []*catalog.Node{}
		}
	}

	var (
		leafPath = strings.Join(segments, "/")
		name     = displayName
		newest   *catalog.Node
	)
	if name == "" && sceneInfo != nil {
		name = catalog.DisplayName(segments[len(segments)-1], sceneInfo, "")
	}
	for _, child := range category.Children {
		if !child.IsLeaf() {
			continue
		}
		if child.Path == leafPath || (name != "" && child.Name == name) {
			return []*catalog.Node{child}
		}
		if newest == nil || child.CreatedAtMs > newest.CreatedAtMs {
			newest = child
		}
	}
	if name == "" && newest != nil {
		return []*catalog.Node{newest}
	}
	return []*catalog.Node{}
}

func withClient(cmd *cobra.Command, v *viper.Viper, fn func(ctx context.Context, c *client.Client) error) error {
	c, err := client.New(serverFlag(v), client.WithHTTPClient(keelhttp.NewHTTPClient(
		keelhttp.HTTPClientWithTimeout(timeoutFlag(v)),
	)))
	if err != nil {
		return err
	}
	defer c.ShutDown()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeoutFlag(v))
	defer cancel()
	return fn(ctx, c)
}

// printOutput renders v in its json wire shape, as yaml or json
func printOutput(w io.Writer, v *viper.Viper, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	switch format := outputFlag(v); format {
	case "json":
		var generic interface{}
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		data, err = json.MarshalIndent(generic, "", catalog.Indent)
		if err != nil {
			return err
		}
		_, err = w.Write(append(data, '\n'))
		return err
	case "yaml", "":
		var generic interface{}
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return err
		}
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(generic); err != nil {
			return err
		}
		return encoder.Close()
	default:
		return errors.Errorf("unknown output format %q (supported: yaml, json)", format)
	}
}
