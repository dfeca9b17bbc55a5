package main

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/ternau/fluxdata"
	"github.com/ternau/fluxdata/catalog"
	"github.com/ternau/fluxdata/dataset"
)

var cli struct {
	CatalogURL string `env:"FLUX_CATALOG_URL" help:"THREDDS catalog root URL (defaults to the TERN service)."`
	CacheDir   string `env:"FLUX_CACHE_DIR" help:"Directory for downloaded dataset payloads."`

	Sites         SitesCmd         `cmd:"" help:"List sites with location and temporal coverage."`
	Versions      VersionsCmd      `cmd:"" help:"List dataset versions for a site."`
	Levels        LevelsCmd        `cmd:"" help:"List processing levels for a site version."`
	Variables     VariablesCmd     `cmd:"" help:"List variable names of a site's latest dataset."`
	Range         RangeCmd         `cmd:"" help:"Show the temporal range of a dataset."`
	Subset        SubsetCmd        `cmd:"" help:"Fetch a subset and summarise it."`
	ExportExcel   ExportExcelCmd   `cmd:"" name:"export-excel" help:"Export a dataset as an Excel workbook."`
	ExportOneflux ExportOnefluxCmd `cmd:"" name:"export-oneflux" help:"Export a dataset as per-year OneFlux CSV files."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("fluxdata"),
		kong.Description("Access TERN OzFlux flux-tower datasets."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	var copts []catalog.Option
	if cli.CatalogURL != "" {
		copts = append(copts, catalog.WithBaseURL(cli.CatalogURL))
	}
	var aopts []dataset.AccessorOption
	if cli.CacheDir != "" {
		aopts = append(aopts, dataset.WithCacheDir(cli.CacheDir))
	}
	client := fluxdata.New(
		fluxdata.WithCatalog(catalog.New(copts...)),
		fluxdata.WithLoader(dataset.NewAccessor(aopts...)),
	)

	ctx.FatalIfErrorf(ctx.Run(client))
}

type SitesCmd struct{}

func (cmd *SitesCmd) Run(client *fluxdata.Client) error {
	sites, err := client.Sites()
	if err != nil {
		return err
	}
	for _, s := range sites {
		fmt.Printf("%-24s %9.4f %9.4f  %s .. %s\n", s.Name, s.Longitude, s.Latitude, s.Start, s.End)
	}
	return nil
}

type VersionsCmd struct {
	Site string `arg:"" help:"Site name, e.g. AdelaideRiver."`
}

func (cmd *VersionsCmd) Run(client *fluxdata.Client) error {
	versions, err := client.Versions(cmd.Site)
	if err != nil {
		return err
	}
	for _, v := range versions {
		fmt.Println(v)
	}
	return nil
}

type LevelsCmd struct {
	Site    string `arg:"" help:"Site name."`
	Version string `arg:"" help:"Dataset version, e.g. 2024_v2."`
}

func (cmd *LevelsCmd) Run(client *fluxdata.Client) error {
	levels, err := client.ProcessingLevels(cmd.Site, cmd.Version)
	if err != nil {
		return err
	}
	for _, l := range levels {
		fmt.Println(l)
	}
	return nil
}

type VariablesCmd struct {
	Site string `arg:"" help:"Site name."`
}

func (cmd *VariablesCmd) Run(client *fluxdata.Client) error {
	vars, err := client.Variables(cmd.Site)
	if err != nil {
		return err
	}
	for _, v := range vars {
		fmt.Println(v)
	}
	return nil
}

type RangeCmd struct {
	Site    string `arg:"" help:"Site name."`
	Version string `help:"Dataset version (latest when omitted)."`
	Level   string `default:"L3" help:"Processing level."`
}

func (cmd *RangeCmd) Run(client *fluxdata.Client) error {
	start, end, err := client.TemporalRange(cmd.Site, cmd.Version, cmd.Level)
	if err != nil {
		return err
	}
	fmt.Printf("%s .. %s\n", start.Format("2006-01-02 15:04:05"), end.Format("2006-01-02 15:04:05"))
	return nil
}

type SubsetCmd struct {
	Site      string   `arg:"" help:"Site name."`
	Variables []string `short:"V" help:"Data variables to keep (all when omitted)."`
	Version   string   `help:"Dataset version (latest when omitted)."`
	Level     string   `default:"L3" help:"Processing level."`
	Start     string   `help:"Inclusive start time, e.g. '2009-01-01 12:30'."`
	End       string   `help:"Inclusive end time."`
	Daily     bool     `help:"Aggregate the subset to daily resolution."`
	Annual    bool     `help:"Aggregate the subset to annual resolution."`
}

func (cmd *SubsetCmd) Run(client *fluxdata.Client) error {
	ds, err := client.Subset(cmd.Site, cmd.Version, cmd.Level, cmd.Variables, cmd.Start, cmd.End)
	if err != nil {
		return err
	}
	if cmd.Annual {
		ds = ds.Annual()
	} else if cmd.Daily {
		ds = ds.Daily()
	}

	fmt.Printf("site: %s\n", ds.Attrs["site_name"])
	if start, end, ok := ds.TemporalRange(); ok {
		fmt.Printf("time: %s .. %s (%d steps)\n",
			start.Format("2006-01-02 15:04"), end.Format("2006-01-02 15:04"), ds.Len())
	} else {
		fmt.Println("time: empty")
	}
	fmt.Printf("variables: %s\n", strings.Join(ds.DataVariables(), ", "))
	return nil
}

type ExportExcelCmd struct {
	Path    string `arg:"" help:"Output .xlsx path."`
	Site    string `arg:"" help:"Site name."`
	Version string `help:"Dataset version (latest when omitted)."`
	Level   string `default:"L6" help:"Processing level."`
}

func (cmd *ExportExcelCmd) Run(client *fluxdata.Client) error {
	path, err := client.ExportExcel(cmd.Path, cmd.Site, cmd.Version, cmd.Level)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

type ExportOnefluxCmd struct {
	Outdir  string `arg:"" help:"Output directory for the CSV files."`
	Site    string `arg:"" help:"Site name."`
	Version string `help:"Dataset version (latest when omitted)."`
	Level   string `default:"L4" help:"Processing level (L3 or L4)."`
}

func (cmd *ExportOnefluxCmd) Run(client *fluxdata.Client) error {
	files, err := client.ExportOneFluxCSV(cmd.Outdir, cmd.Site, cmd.Version, cmd.Level)
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Println(f)
	}
	return nil
}
