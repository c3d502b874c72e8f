package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/geomap/pkg/errors"
	"github.com/matzehuels/geomap/pkg/loader"
	"github.com/matzehuels/geomap/pkg/mask"
	"github.com/matzehuels/geomap/pkg/pipeline"
)

// loadFlags holds the command-line flags for the load command.
type loadFlags struct {
	out        string
	categories string
	bins       int
	batch      int
	binary     string
	dbDir      string
	mongoURI   string
	mongoDB    string
	mongoColl  string
}

// loadCommand creates the load command, which embeds stored masks and hands
// them to the location database loader.
func (c *CLI) loadCommand() *cobra.Command {
	var f loadFlags

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Embed stored masks and load them into a location database",
		Long: `Load walks <out>/images/<key>/, computes a color-histogram embedding for each
mask and passes (lon, lat, embedding) records either to an external loader
binary, invoked as "<binary> <dim> <lon> <lat> <v0> ...", or to MongoDB.`,
		Example: `  geomap load --out spb --category building --loader ./add_embeddings
  geomap load --out spb --mongo mongodb://localhost:27017 --mongo-db geomap`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLoad(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVarP(&f.out, "out", "o", pipeline.DefaultOutDir, "render output directory holding images/")
	cmd.Flags().StringVar(&f.categories, "category", "", "comma-separated mask keys to load (default all)")
	cmd.Flags().IntVar(&f.bins, "bins", loader.DefaultBins, "histogram bins per color channel")
	cmd.Flags().IntVar(&f.batch, "batch", loader.DefaultBatch, "records per loader invocation or insert")
	cmd.Flags().StringVar(&f.binary, "loader", "", "external loader binary")
	cmd.Flags().StringVar(&f.dbDir, "db-dir", ".", "working directory for the loader binary")
	cmd.Flags().StringVar(&f.mongoURI, "mongo", "", "MongoDB connection URI")
	cmd.Flags().StringVar(&f.mongoDB, "mongo-db", "geomap", "MongoDB database")
	cmd.Flags().StringVar(&f.mongoColl, "mongo-collection", loader.DefaultMongoCollection, "MongoDB collection")
	cmd.MarkFlagsMutuallyExclusive("loader", "mongo")
	cmd.MarkFlagsOneRequired("loader", "mongo")
	return cmd
}

func (c *CLI) newSink(ctx context.Context, f loadFlags) (loader.Sink, error) {
	switch {
	case f.mongoURI != "":
		return loader.NewMongoSink(ctx, f.mongoURI, f.mongoDB, f.mongoColl)
	case f.binary != "":
		return loader.NewExecSink(f.binary, f.dbDir), nil
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "one of --loader or --mongo is required")
}

func (c *CLI) runLoad(ctx context.Context, f loadFlags) error {
	sink, err := c.newSink(ctx, f)
	if err != nil {
		return err
	}
	defer sink.Close(context.WithoutCancel(ctx))

	store := mask.NewDirStore(f.out)
	embedder := loader.NewHistogramEmbedder(f.bins)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Loading masks from %s", store.Root()))
	l := loader.New(store, embedder, sink, loader.Options{
		Categories: parseCategories(f.categories),
		Batch:      f.batch,
		Logger:     c.Logger,
		Progress: func(s loader.Stats) {
			spinner.SetMessage("Loading masks (%d visited, %d loaded)", s.Masks, s.Loaded)
		},
	})

	spinner.Start()
	stats, err := l.Run(ctx)
	if err != nil {
		spinner.StopWithError("Load failed")
		return err
	}
	spinner.StopWithSuccess(fmt.Sprintf("Loaded %d masks", stats.Loaded))
	printKeyValue("dimensions", fmt.Sprint(embedder.Dim()))
	if stats.Skipped > 0 {
		printWarning("%d masks skipped", stats.Skipped)
	}
	return nil
}
