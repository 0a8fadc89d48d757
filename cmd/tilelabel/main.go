package main

import (
	"fmt"
	"math/rand/v2"
	"os"

	"github.com/wgdzlh/tilelabel"
	"github.com/wgdzlh/tilelabel/log"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfg     tilelabel.Config
	loadErr error
	mode    string
	format  string
)

func init() {
	cfg, loadErr = tilelabel.LoadConfig()

	pf := rootCommand.PersistentFlags()
	pf.StringVarP(&cfg.Footprints, "footprints", "f", cfg.Footprints, "building footprint dataset (shapefile, directory, gpkg or geojson)")
	pf.StringVar(&cfg.LabelField, "label-field", cfg.LabelField, "footprint attribute used as shape label")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug|info|warn|error)")
	pf.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "log in json format")

	f := rootCommand.Flags()
	f.StringVarP(&cfg.OutDir, "out", "o", cfg.OutDir, "output directory for tiles and annotations")
	f.StringVar(&cfg.WorkDir, "tmp", cfg.WorkDir, "directory for intermediate files (default <out>/.work)")
	f.IntVarP(&cfg.TileSize, "tile-size", "s", cfg.TileSize, "tile width in pixels")
	f.IntVar(&cfg.TileHeight, "tile-height", cfg.TileHeight, "tile height in pixels (0 for square tiles)")
	f.IntVarP(&cfg.Samples, "num-samples", "n", cfg.Samples, "number of annotated tiles to produce")
	f.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "max tile draws (0 for num-samples*50)")
	f.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "random seed for sampling (random when unset)")
	f.StringVarP(&cfg.TargetCRS, "crs", "t", cfg.TargetCRS, "target crs of the tiles (default footprint layer crs)")
	f.StringVarP(&cfg.Resampling, "resampling", "r", cfg.Resampling, "warp resampling method")
	f.StringVar(&format, "img-type", string(cfg.Format), "output image type (tif|jpg|png|cog)")
	f.StringVar(&cfg.BandOrder, "band-order", cfg.BandOrder, "band order of the source raster, used for jpg/png export")
	f.StringVarP(&mode, "mode", "m", string(cfg.Mode), "footprint to pixel conversion (bbox|polygon)")
	f.BoolVar(&cfg.RectBounds, "rect-bounds", cfg.RectBounds, "compute the tile query polygon from the real tile width and height")
	f.BoolVar(&cfg.ExactAffine, "exact-affine", cfg.ExactAffine, "use the full inverse geotransform for pixel coordinates")
	f.BoolVar(&cfg.KeepSourceTile, "keep-source", cfg.KeepSourceTile, "keep the tile in the source crs next to the converted one")
	f.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "write run metrics in prometheus text format")
	f.StringVarP(&cfg.Upload, "upload", "u", cfg.Upload, "upload accepted tiles to gs://bucket/prefix")
	f.BoolVar(&cfg.GCSAnonymous, "gs-anonymous", cfg.GCSAnonymous, "access gs:// objects without credentials")
	f.Int64Var(&cfg.CRSCacheSize, "crs-cache", cfg.CRSCacheSize, "number of resolved crs kept in memory")

	rootCommand.AddCommand(labelsCommand)
}

func main() {
	err := rootCommand.Execute()
	_ = log.Sync()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

var rootCommand = &cobra.Command{
	Use:          "tilelabel [flags] raster",
	Short:        "sample raster tiles and annotate the building footprints inside them",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if loadErr != nil {
			return loadErr
		}
		return log.Init(cfg.LogLevel, cfg.LogJSON)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			cfg.Source = args[0]
		}
		cfg.Mode = tilelabel.ProjectMode(mode)
		cfg.Format = tilelabel.ImageFormat(format)
		if !cmd.Flags().Changed("seed") && os.Getenv("TILELABEL_SEED") == "" {
			cfg.Seed = rand.Uint64()
		}
		g := tilelabel.NewToolbox(cfg.CRSCacheSize)
		defer g.Close()
		sum, err := g.Run(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		log.Info("done", zap.Int("tiles", sum.Accepted), zap.Int("attempts", sum.Attempts),
			zap.Uint64("seed", cfg.Seed), zap.String("out", cfg.OutDir))
		return nil
	},
}

var labelsCommand = &cobra.Command{
	Use:   "labels",
	Short: "list the distinct values of --label-field in the footprint dataset",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Footprints == "" || cfg.LabelField == "" {
			return fmt.Errorf("%w: --footprints and --label-field are required", tilelabel.ErrInvalidConfig)
		}
		g := tilelabel.NewToolbox(cfg.CRSCacheSize)
		defer g.Close()
		labels, err := g.Labels(cfg.Footprints, cfg.LabelField)
		if err != nil {
			return err
		}
		for _, l := range labels {
			fmt.Println(l)
		}
		return nil
	},
}
