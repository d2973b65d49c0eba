package simclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/bacalhau-project/simverify/pkg/models"
)

const maxErrorBody = 512

type ClientParams struct {
	ExecutorURL string
	ResultsURL  string
	CatalogURL  string
	// RetryMax bounds the retries of idempotent GET requests.
	RetryMax       int
	RetryWaitMin   time.Duration
	RetryWaitMax   time.Duration
	RequestTimeout time.Duration
	// HTTPClient overrides the transport, mostly for tests.
	HTTPClient *http.Client
}

// Client is the REST client of the executor, results and catalog services.
type Client struct {
	executorURL *url.URL
	resultsURL  *url.URL
	catalogURL  *url.URL
	// getter retries transient failures of idempotent requests
	getter *retryablehttp.Client
	// poster sends run submissions exactly once
	poster *http.Client
}

func NewClient(params ClientParams) (*Client, error) {
	executorURL, err := url.Parse(params.ExecutorURL)
	if err != nil {
		return nil, fmt.Errorf("invalid executor url: %w", err)
	}
	resultsURL, err := url.Parse(params.ResultsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid results url: %w", err)
	}
	catalogURL, err := url.Parse(params.CatalogURL)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog url: %w", err)
	}

	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: params.RequestTimeout}
	}

	getter := retryablehttp.NewClient()
	getter.HTTPClient = httpClient
	getter.RetryMax = params.RetryMax
	if params.RetryWaitMin > 0 {
		getter.RetryWaitMin = params.RetryWaitMin
	}
	if params.RetryWaitMax > 0 {
		getter.RetryWaitMax = params.RetryWaitMax
	}
	getter.Logger = retryLogger{}
	getter.CheckRetry = checkRetry
	getter.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		executorURL: executorURL,
		resultsURL:  resultsURL,
		catalogURL:  catalogURL,
		getter:      getter,
		poster:      httpClient,
	}, nil
}

// checkRetry never retries a definitive 404.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func (c *Client) Submit(ctx context.Context, request SubmitRequest) (models.RunInfo, error) {
	meta, err := json.Marshal(runMetadata{
		Name:             request.Name,
		Simulator:        request.Simulator.ID,
		SimulatorVersion: request.Simulator.Version,
	})
	if err != nil {
		return models.RunInfo{}, err
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err = form.WriteField("runMetadata", string(meta)); err != nil {
		return models.RunInfo{}, err
	}
	filename := request.Filename
	if filename == "" {
		filename = "archive.omex"
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return models.RunInfo{}, err
	}
	if _, err = part.Write(request.Archive); err != nil {
		return models.RunInfo{}, err
	}
	if err = form.Close(); err != nil {
		return models.RunInfo{}, err
	}

	addr := c.executorURL.JoinPath("runs").String()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr, &body)
	if err != nil {
		return models.RunInfo{}, errors.Wrap(err, "executor: creating submit request")
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	res, err := c.poster.Do(req)
	if err != nil {
		return models.RunInfo{}, errors.Wrap(err, "executor: submitting run")
	}
	defer closeBody(res)

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return models.RunInfo{}, unexpectedStatus("executor: submitting run", res)
	}
	var out runResponse
	if err = json.NewDecoder(res.Body).Decode(&out); err != nil {
		return models.RunInfo{}, errors.Wrap(err, "executor: decoding submit response")
	}
	if out.ID == "" {
		return models.RunInfo{}, errors.New("executor: submit response has no run id")
	}
	info, err := out.toRunInfo()
	if err != nil {
		// the run exists on the executor, polling resolves its status
		log.Ctx(ctx).Warn().Err(err).Str("run_id", out.ID).Msg("accepted run has an unrecognized status")
		info.Status = models.RunStatusQueued
	}
	return info, nil
}

func (c *Client) GetRun(ctx context.Context, runID string) (models.RunInfo, error) {
	var out runResponse
	if err := c.doGet(ctx, c.executorURL.JoinPath("runs", runID), runID, "executor: getting run", &out); err != nil {
		return models.RunInfo{}, err
	}
	if out.ID == "" {
		out.ID = runID
	}
	return out.toRunInfo()
}

func (c *Client) GetMetadata(ctx context.Context, runID string) (models.OutputMetadata, error) {
	var out metadataResponse
	if err := c.doGet(ctx, c.resultsURL.JoinPath("runs", runID, "metadata"), runID, "results: getting metadata", &out); err != nil {
		return models.OutputMetadata{}, err
	}
	return out.toOutputMetadata(), nil
}

func (c *Client) GetDataset(ctx context.Context, runID string, dataset string) (models.Dataset, error) {
	var out datasetResponse
	if err := c.doGet(ctx, c.resultsURL.JoinPath("runs", runID, "datasets", dataset), runID, "results: getting dataset", &out); err != nil {
		return models.Dataset{}, err
	}
	return out.toDataset(dataset, nil), nil
}

func (c *Client) ListSimulatorVersions(ctx context.Context) ([]models.Simulator, error) {
	var out []simulatorResponse
	if err := c.doGet(ctx, c.catalogURL.JoinPath("simulators"), "", "catalog: listing simulators", &out); err != nil {
		return nil, err
	}
	sims := make([]models.Simulator, 0, len(out))
	for _, s := range out {
		sims = append(sims, s.toSimulator())
	}
	return sims, nil
}

func (c *Client) doGet(ctx context.Context, addr *url.URL, runID string, operation string, resData any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, addr.String(), nil)
	if err != nil {
		return errors.Wrapf(err, "%s: creating request", operation)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.getter.Do(req)
	if err != nil {
		return errors.Wrap(err, operation)
	}
	defer closeBody(res)

	if res.StatusCode == http.StatusNotFound && runID != "" {
		return NewErrRunIDNotFound(runID)
	}
	if res.StatusCode != http.StatusOK {
		return unexpectedStatus(operation, res)
	}
	if err = json.NewDecoder(res.Body).Decode(resData); err != nil {
		return errors.Wrapf(err, "%s: decoding response", operation)
	}
	return nil
}

func unexpectedStatus(operation string, res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	return NewErrUnexpectedStatus(operation, res.StatusCode, string(bytes.TrimSpace(body)))
}

func closeBody(res *http.Response) {
	if err := res.Body.Close(); err != nil {
		log.Debug().Err(err).Msg("error closing response body")
	}
}

// retryLogger forwards retryablehttp logs to zerolog.
type retryLogger struct{}

func (retryLogger) Error(msg string, keysAndValues ...interface{}) {
	log.Error().Fields(keysAndValues).Msg(msg)
}

func (retryLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg(msg)
}

func (retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	log.Trace().Fields(keysAndValues).Msg(msg)
}

func (retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	log.Warn().Fields(keysAndValues).Msg(msg)
}

// compile time checks whether the Client implements the service interfaces.
var (
	_ Executor                    = (*Client)(nil)
	_ ResultsService              = (*Client)(nil)
	_ Catalog                     = (*Client)(nil)
	_ retryablehttp.LeveledLogger = retryLogger{}
)
