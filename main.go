package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"district/district-prover/config"
	"district/district-prover/logging"
	merkletree "district/district-prover/merkle-tree"
	"district/district-prover/prover"
	"district/district-prover/server"

	"github.com/consensys/gnark/constraint"
	gnarkLogger "github.com/consensys/gnark/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	runCli()
}

func parseCircuitFlags(context *cli.Context) (prover.CircuitType, uint32, uint32, error) {
	circuit := prover.CircuitType(context.String("circuit"))
	if circuit != prover.Membership && circuit != prover.TwoTier {
		return "", 0, 0, fmt.Errorf("invalid circuit type %s", circuit)
	}

	treeDepth := uint32(context.Uint("tree-depth"))
	if tier := context.String("tier"); tier != "" {
		var err error
		treeDepth, err = prover.DepthForTier(prover.Tier(tier))
		if err != nil {
			return "", 0, 0, err
		}
	}
	if treeDepth == 0 {
		return "", 0, 0, fmt.Errorf("either tier or tree-depth must be provided")
	}

	globalTreeDepth := uint32(context.Uint("global-tree-depth"))
	if circuit == prover.TwoTier && globalTreeDepth == 0 {
		globalTreeDepth = prover.GlobalTreeDepth
	}
	if circuit == prover.Membership {
		globalTreeDepth = 0
	}

	return circuit, treeDepth, globalTreeDepth, nil
}

func runCli() {
	gnarkLogger.Set(*logging.Logger())
	app := cli.App{
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			{
				Name: "setup",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "circuit", Usage: "Type of circuit (\"membership\" / \"two-tier\")", Required: true},
					&cli.StringFlag{Name: "output", Usage: "Output file", Required: true},
					&cli.StringFlag{Name: "output-vkey", Usage: "Output file for the verifying key", Required: true},
					&cli.StringFlag{Name: "tier", Usage: "Jurisdiction tier (\"municipal\" / \"state\" / \"federal\")", Required: false},
					&cli.UintFlag{Name: "tree-depth", Usage: "District tree depth", Required: false},
					&cli.UintFlag{Name: "global-tree-depth", Usage: "Global registry tree depth (two-tier only)", Required: false},
				},
				Action: func(context *cli.Context) error {
					circuit, treeDepth, globalTreeDepth, err := parseCircuitFlags(context)
					if err != nil {
						return err
					}
					path := context.String("output")
					pathVkey := context.String("output-vkey")

					logging.Logger().Info().Msg("Running setup")

					system, err := prover.SetupCircuit(circuit, treeDepth, globalTreeDepth)
					if err != nil {
						return err
					}
					file, err := os.Create(path)
					if err != nil {
						return err
					}
					defer func(file *os.File) {
						err := file.Close()
						if err != nil {
							logging.Logger().Error().Err(err).Msg("error closing file")
						}
					}(file)
					written, err := system.WriteTo(file)
					if err != nil {
						return err
					}
					logging.Logger().Info().Int64("bytesWritten", written).Msg("proving system written to file")

					vkeyFile, err := os.Create(pathVkey)
					if err != nil {
						return err
					}
					defer func(file *os.File) {
						err := file.Close()
						if err != nil {
							logging.Logger().Error().Err(err).Msg("error closing file")
						}
					}(vkeyFile)
					written, err = system.VerifyingKey.WriteRawTo(vkeyFile)
					if err != nil {
						return err
					}
					logging.Logger().Info().Int64("bytesWritten", written).Msg("verifying key written to file")
					return nil
				},
			},
			{
				Name: "r1cs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "circuit", Usage: "Type of circuit (\"membership\" / \"two-tier\")", Required: true},
					&cli.StringFlag{Name: "output", Usage: "Output file", Required: true},
					&cli.StringFlag{Name: "tier", Usage: "Jurisdiction tier", Required: false},
					&cli.UintFlag{Name: "tree-depth", Usage: "District tree depth", Required: false},
					&cli.UintFlag{Name: "global-tree-depth", Usage: "Global registry tree depth (two-tier only)", Required: false},
				},
				Action: func(context *cli.Context) error {
					circuit, treeDepth, globalTreeDepth, err := parseCircuitFlags(context)
					if err != nil {
						return err
					}
					path := context.String("output")
					logging.Logger().Info().Msg("Building R1CS")

					var cs constraint.ConstraintSystem
					if circuit == prover.Membership {
						cs, err = prover.R1CSMembership(treeDepth)
					} else {
						cs, err = prover.R1CSTwoTier(treeDepth, globalTreeDepth)
					}
					if err != nil {
						return err
					}
					file, err := os.Create(path)
					if err != nil {
						return err
					}
					defer func(file *os.File) {
						err := file.Close()
						if err != nil {
							logging.Logger().Error().Err(err).Msg("error closing file")
						}
					}(file)
					written, err := cs.WriteTo(file)
					if err != nil {
						return err
					}
					logging.Logger().Info().Int64("bytesWritten", written).Msg("R1CS written to file")
					return nil
				},
			},
			{
				Name: "import-setup",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "circuit", Usage: "Type of circuit (\"membership\" / \"two-tier\")", Required: true},
					&cli.StringFlag{Name: "output", Usage: "Output file", Required: true},
					&cli.StringFlag{Name: "pk", Usage: "Proving key", Required: true},
					&cli.StringFlag{Name: "vk", Usage: "Verifying key", Required: true},
					&cli.StringFlag{Name: "tier", Usage: "Jurisdiction tier", Required: false},
					&cli.UintFlag{Name: "tree-depth", Usage: "District tree depth", Required: false},
					&cli.UintFlag{Name: "global-tree-depth", Usage: "Global registry tree depth (two-tier only)", Required: false},
				},
				Action: func(context *cli.Context) error {
					circuit, treeDepth, globalTreeDepth, err := parseCircuitFlags(context)
					if err != nil {
						return err
					}
					path := context.String("output")
					pk := context.String("pk")
					vk := context.String("vk")

					logging.Logger().Info().Msg("Importing setup")

					var system *prover.ProvingSystem
					if circuit == prover.Membership {
						system, err = prover.ImportMembershipSetup(treeDepth, pk, vk)
					} else {
						system, err = prover.ImportTwoTierSetup(treeDepth, globalTreeDepth, pk, vk)
					}
					if err != nil {
						return err
					}

					file, err := os.Create(path)
					if err != nil {
						return err
					}
					defer func(file *os.File) {
						err := file.Close()
						if err != nil {
							logging.Logger().Error().Err(err).Msg("error closing file")
						}
					}(file)
					written, err := system.WriteTo(file)
					if err != nil {
						return err
					}
					logging.Logger().Info().Int64("bytesWritten", written).Msg("proving system written to file")
					return nil
				},
			},
			{
				Name: "export-vk",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "keys-file", Aliases: []string{"k"}, Usage: "proving system file", Required: true},
					&cli.StringFlag{Name: "output", Usage: "output file", Required: true},
				},
				Action: func(context *cli.Context) error {
					keys := context.String("keys-file")
					ps, err := prover.ReadSystemFromFile(keys)
					if err != nil {
						return err
					}
					outPath := context.String("output")

					file, err := os.Create(outPath)
					if err != nil {
						return err
					}
					defer func(file *os.File) {
						err := file.Close()
						if err != nil {
							logging.Logger().Error().Err(err).Msg("error closing file")
						}
					}(file)
					_, err = ps.VerifyingKey.WriteTo(file)
					return err
				},
			},
			{
				Name: "gen-test-params",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "tree-depth", Usage: "depth of the test tree", DefaultText: "16", Value: 16},
					&cli.UintFlag{Name: "index", Usage: "leaf index of the test identity", DefaultText: "0", Value: 0},
				},
				Action: func(context *cli.Context) error {
					treeDepth := context.Int("tree-depth")
					index := uint32(context.Uint("index"))
					logging.Logger().Info().Msg("Generating test params for the membership circuit")

					params, err := merkletree.BuildTestParameters(treeDepth, index)
					if err != nil {
						return err
					}
					r, err := json.Marshal(params)
					if err != nil {
						return err
					}

					fmt.Println(string(r))
					return nil
				},
			},
			{
				Name: "start",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Usage: "config file", Required: false},
					&cli.BoolFlag{Name: "json-logging", Usage: "enable JSON logging", Required: false},
					&cli.StringFlag{Name: "prover-address", Usage: "address for the prover server", Value: "localhost:3001", Required: false},
					&cli.StringFlag{Name: "metrics-address", Usage: "address for the metrics server", Value: "localhost:9998", Required: false},
					&cli.BoolFlag{Name: "membership", Usage: "Run membership circuit", Required: false},
					&cli.BoolFlag{Name: "two-tier", Usage: "Run two-tier circuit", Required: false},
					&cli.StringFlag{Name: "circuit-dir", Usage: "Directory where circuit key files are stored", Value: "./circuits/", Required: false},
					&cli.StringSliceFlag{Name: "keys-file", Aliases: []string{"k"}, Value: cli.NewStringSlice(), Usage: "Proving system file"},
				},
				Action: func(context *cli.Context) error {
					if context.Bool("json-logging") {
						logging.SetJSONOutput()
					}

					serverCfg := server.Config{
						ProverAddress:  context.String("prover-address"),
						MetricsAddress: context.String("metrics-address"),
					}

					var keys []string
					if configFile := context.String("config"); configFile != "" {
						cfg, err := config.ReadConfig(configFile)
						if err != nil {
							return err
						}
						if err := cfg.Validate(); err != nil {
							return err
						}
						if cfg.JSONLogging {
							logging.SetJSONOutput()
						}
						serverCfg.ProverAddress = cfg.ProverAddress
						serverCfg.MetricsAddress = cfg.MetricsAddress
						keys = cfg.Keys
					} else {
						keys = getKeysByArgs(context)
					}

					ps, err := LoadKeys(keys)
					if err != nil {
						return err
					}
					if len(ps) == 0 {
						return fmt.Errorf("no proving systems loaded")
					}

					instance := server.Run(&serverCfg, ps)
					sigint := make(chan os.Signal, 1)
					signal.Notify(sigint, os.Interrupt)
					<-sigint
					logging.Logger().Info().Msg("Received sigint, shutting down")
					instance.RequestStop()
					logging.Logger().Info().Msg("Waiting for server to close")
					instance.AwaitStop()
					return nil
				},
			},
			{
				Name: "prove",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "membership", Usage: "Run membership circuit", Required: false},
					&cli.BoolFlag{Name: "two-tier", Usage: "Run two-tier circuit", Required: false},
					&cli.StringFlag{Name: "circuit-dir", Usage: "Directory where circuit key files are stored", Value: "./circuits/", Required: false},
					&cli.StringSliceFlag{Name: "keys-file", Aliases: []string{"k"}, Value: cli.NewStringSlice(), Usage: "Proving system file"},
				},
				Action: func(context *cli.Context) error {
					ps, err := LoadKeys(getKeysByArgs(context))
					if err != nil {
						return err
					}
					if len(ps) == 0 {
						return fmt.Errorf("no proving systems loaded")
					}

					logging.Logger().Info().Msg("Reading params from stdin")
					inputsBytes, err := io.ReadAll(os.Stdin)
					if err != nil {
						return err
					}

					circuitType, err := prover.ParseCircuitType(inputsBytes)
					if err != nil {
						return err
					}

					var response *prover.ProofResponse
					switch circuitType {
					case prover.Membership:
						params, err := prover.ParseMembershipInput(inputsBytes)
						if err != nil {
							return err
						}
						for _, provingSystem := range ps {
							if provingSystem.CircuitType == prover.Membership && provingSystem.TreeDepth == params.TreeDepth() {
								response, err = provingSystem.ProveMembership(&params)
								if err != nil {
									return err
								}
								break
							}
						}
					case prover.TwoTier:
						params, err := prover.ParseTwoTierInput(inputsBytes)
						if err != nil {
							return err
						}
						for _, provingSystem := range ps {
							if provingSystem.CircuitType == prover.TwoTier && provingSystem.TreeDepth == params.TreeDepth() && provingSystem.GlobalTreeDepth == params.GlobalTreeDepth() {
								response, err = provingSystem.ProveTwoTier(&params)
								if err != nil {
									return err
								}
								break
							}
						}
					}
					if response == nil {
						return fmt.Errorf("no proving system matches the request")
					}

					r, err := json.Marshal(response)
					if err != nil {
						return err
					}
					fmt.Println(string(r))
					return nil
				},
			},
			{
				Name: "verify",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "keys-file", Aliases: []string{"k"}, Usage: "proving system file", Required: true},
					&cli.StringFlag{Name: "district-root", Usage: "district tree root", Required: true},
					&cli.StringFlag{Name: "global-root", Usage: "global registry root (two-tier only)", Required: false},
					&cli.StringFlag{Name: "nullifier", Usage: "nullifier", Required: true},
					&cli.StringFlag{Name: "action-id", Usage: "action id", Required: true},
				},
				Action: func(context *cli.Context) error {
					keys := context.String("keys-file")
					ps, err := prover.ReadSystemFromFile(keys)
					if err != nil {
						return err
					}
					logging.Logger().Info().
						Str("circuit", string(ps.CircuitType)).
						Uint32("treeDepth", ps.TreeDepth).
						Uint32("globalTreeDepth", ps.GlobalTreeDepth).
						Msg("Read proving system")

					publicInputs, err := parsePublicInputFlags(context, ps.CircuitType)
					if err != nil {
						return err
					}

					logging.Logger().Info().Msg("Reading proof from stdin")
					proofBytes, err := io.ReadAll(os.Stdin)
					if err != nil {
						logging.Logger().Err(err).Msg("error reading proof from stdin")
						return err
					}
					var proof prover.Proof
					err = json.Unmarshal(proofBytes, &proof)
					if err != nil {
						logging.Logger().Err(err).Msg("error unmarshalling proof from stdin")
						return err
					}

					if ps.CircuitType == prover.Membership {
						err = ps.VerifyMembership(publicInputs, &proof)
					} else {
						err = ps.VerifyTwoTier(publicInputs, &proof)
					}
					if err != nil {
						return err
					}
					logging.Logger().Info().Msg("verification complete")
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logging.Logger().Fatal().Err(err).Msg("App failed.")
	}
}

func parsePublicInputFlags(context *cli.Context, circuit prover.CircuitType) (*prover.PublicInputs, error) {
	var publicInputs prover.PublicInputs

	districtRoot, err := prover.ParseFieldElement(context.String("district-root"))
	if err != nil {
		return nil, err
	}
	publicInputs.DistrictRoot = *districtRoot

	nullifier, err := prover.ParseFieldElement(context.String("nullifier"))
	if err != nil {
		return nil, err
	}
	publicInputs.Nullifier = *nullifier

	actionId, err := prover.ParseFieldElement(context.String("action-id"))
	if err != nil {
		return nil, err
	}
	publicInputs.ActionId = *actionId

	if circuit == prover.TwoTier {
		globalRootFlag := context.String("global-root")
		if globalRootFlag == "" {
			return nil, fmt.Errorf("global-root is required for the two-tier circuit")
		}
		globalRoot, err := prover.ParseFieldElement(globalRootFlag)
		if err != nil {
			return nil, err
		}
		publicInputs.GlobalRoot = globalRoot
	}
	return &publicInputs, nil
}

func LoadKeys(keys []string) ([]*prover.ProvingSystem, error) {
	var pss = make([]*prover.ProvingSystem, len(keys))
	for i, key := range keys {
		logging.Logger().Info().Msg("Reading proving system from file " + key + "...")
		ps, err := prover.ReadSystemFromFile(key)
		if err != nil {
			return nil, err
		}
		pss[i] = ps
		logging.Logger().Info().
			Str("circuit", string(ps.CircuitType)).
			Uint32("treeDepth", ps.TreeDepth).
			Uint32("globalTreeDepth", ps.GlobalTreeDepth).
			Msg("Read proving system")
	}
	return pss, nil
}

func getKeysByArgs(context *cli.Context) []string {
	if keys := context.StringSlice("keys-file"); len(keys) > 0 {
		return keys
	}
	var circuitDir = context.String("circuit-dir")
	var circuitTypes []prover.CircuitType
	if context.Bool("membership") {
		circuitTypes = append(circuitTypes, prover.Membership)
	}
	if context.Bool("two-tier") {
		circuitTypes = append(circuitTypes, prover.TwoTier)
	}
	return prover.GetKeys(circuitDir, circuitTypes)
}
