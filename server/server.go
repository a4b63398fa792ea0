package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"district/district-prover/logging"
	"district/district-prover/prover"

	"github.com/gorilla/handlers"
)

type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func malformedBodyError(err error) *Error {
	return &Error{StatusCode: http.StatusBadRequest, Code: "malformed_body", Message: err.Error()}
}

func provingError(err error) *Error {
	return &Error{StatusCode: http.StatusBadRequest, Code: "proving_error", Message: err.Error()}
}

func unexpectedError(err error) *Error {
	return &Error{StatusCode: http.StatusInternalServerError, Code: "unexpected_error", Message: err.Error()}
}

func (error *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"code":    error.Code,
		"message": error.Message,
	})
}

func (error *Error) send(w http.ResponseWriter) {
	w.WriteHeader(error.StatusCode)
	jsonBytes, err := error.MarshalJSON()
	if err != nil {
		jsonBytes = []byte(`{"code": "unexpected_error", "message": "failed to marshal error"}`)
	}
	length, err := w.Write(jsonBytes)
	if err != nil || length != len(jsonBytes) {
		logging.Logger().Error().Err(err).Msg("error writing response")
	}
}

type Config struct {
	ProverAddress  string
	MetricsAddress string
}

func spawnServerJob(server *http.Server, label string) RunningJob {
	start := func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(fmt.Sprintf("%s failed: %s", label, err))
		}
	}
	shutdown := func() {
		logging.Logger().Info().Msgf("shutting down %s", label)
		err := server.Shutdown(context.Background())
		if err != nil {
			logging.Logger().Error().Err(err).Msgf("error when shutting down %s", label)
		}
		logging.Logger().Info().Msgf("%s shut down", label)
	}
	return SpawnJob(start, shutdown)
}

func Run(config *Config, provingSystems []*prover.ProvingSystem) RunningJob {
	metricsMux := http.NewServeMux()
	// TODO: Add metrics
	metricsServer := &http.Server{Addr: config.MetricsAddress, Handler: metricsMux}
	metricsJob := spawnServerJob(metricsServer, "metrics server")
	logging.Logger().Info().Str("addr", config.MetricsAddress).Msg("metrics server started")

	proverMux := http.NewServeMux()
	proverMux.Handle("/prove", proveHandler{provingSystems: provingSystems})
	proverMux.Handle("/health", healthHandler{})

	corsHandler := handlers.CORS(
		handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"}),
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
	)

	proverServer := &http.Server{Addr: config.ProverAddress, Handler: corsHandler(proverMux)}
	proverJob := spawnServerJob(proverServer, "prover server")
	logging.Logger().Info().Str("addr", config.ProverAddress).Msg("app server started")

	return CombineJobs(metricsJob, proverJob)
}

type proveHandler struct {
	provingSystems []*prover.ProvingSystem
}

type healthHandler struct {
}

func (handler proveHandler) findSystem(circuit prover.CircuitType, treeDepth uint32, globalTreeDepth uint32) *prover.ProvingSystem {
	for _, ps := range handler.provingSystems {
		if ps.CircuitType == circuit && ps.TreeDepth == treeDepth && ps.GlobalTreeDepth == globalTreeDepth {
			return ps
		}
	}
	return nil
}

func (handler proveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	logging.Logger().Info().Msg("received prove request")
	buf, err := io.ReadAll(r.Body)
	if err != nil {
		logging.Logger().Info().Err(err).Msg("error reading request body")
		malformedBodyError(err).send(w)
		return
	}

	circuitType, err := prover.ParseCircuitType(buf)
	if err != nil {
		logging.Logger().Info().Err(err).Msg("error parsing circuit type")
		malformedBodyError(err).send(w)
		return
	}

	var response *prover.ProofResponse
	var proofError *Error
	switch circuitType {
	case prover.Membership:
		response, proofError = handler.proveMembership(buf)
	case prover.TwoTier:
		response, proofError = handler.proveTwoTier(buf)
	}
	if proofError != nil {
		proofError.send(w)
		return
	}

	responseBytes, err := json.Marshal(response)
	if err != nil {
		logging.Logger().Error().Err(err).Msg("error marshalling response")
		unexpectedError(err).send(w)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, err = w.Write(responseBytes)
	if err != nil {
		logging.Logger().Error().Err(err).Msg("error writing response")
	}
}

func (handler proveHandler) proveMembership(buf []byte) (*prover.ProofResponse, *Error) {
	params, err := prover.ParseMembershipInput(buf)
	if err != nil {
		logging.Logger().Info().Err(err).Msg("error parsing membership params")
		return nil, malformedBodyError(err)
	}

	ps := handler.findSystem(prover.Membership, params.TreeDepth(), 0)
	if ps == nil {
		err = fmt.Errorf("no proving system for membership depth %d", params.TreeDepth())
		logging.Logger().Info().Msg(err.Error())
		return nil, provingError(err)
	}

	response, err := ps.ProveMembership(&params)
	if err != nil {
		logging.Logger().Info().Err(err).Msg("error proving membership")
		return nil, provingError(err)
	}
	return response, nil
}

func (handler proveHandler) proveTwoTier(buf []byte) (*prover.ProofResponse, *Error) {
	params, err := prover.ParseTwoTierInput(buf)
	if err != nil {
		logging.Logger().Info().Err(err).Msg("error parsing two-tier params")
		return nil, malformedBodyError(err)
	}

	ps := handler.findSystem(prover.TwoTier, params.TreeDepth(), params.GlobalTreeDepth())
	if ps == nil {
		err = fmt.Errorf("no proving system for two-tier depths %d/%d", params.TreeDepth(), params.GlobalTreeDepth())
		logging.Logger().Info().Msg(err.Error())
		return nil, provingError(err)
	}

	response, err := ps.ProveTwoTier(&params)
	if err != nil {
		logging.Logger().Info().Err(err).Msg("error proving two-tier membership")
		return nil, provingError(err)
	}
	return response, nil
}

func (handler healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	responseBytes, err := json.Marshal(map[string]string{"status": "ok"})
	if err != nil {
		unexpectedError(err).send(w)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(responseBytes)
	if err != nil {
		logging.Logger().Error().Err(err).Msg("error writing response")
	}
}
