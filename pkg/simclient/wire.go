package simclient

import (
	"math"

	"github.com/opencontainers/go-digest"

	"github.com/bacalhau-project/simverify/pkg/models"
)

type runMetadata struct {
	Name             string `json:"name"`
	Simulator        string `json:"simulator"`
	SimulatorVersion string `json:"simulatorVersion"`
}

type runResponse struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	Simulator        string `json:"simulator,omitempty"`
	SimulatorVersion string `json:"simulatorVersion,omitempty"`
}

func (r runResponse) toRunInfo() (models.RunInfo, error) {
	status, err := models.ParseRunStatus(r.Status)
	info := models.RunInfo{
		RunID:            r.ID,
		Status:           status,
		Simulator:        r.Simulator,
		SimulatorVersion: r.SimulatorVersion,
	}
	return info, err
}

type metadataResponse struct {
	Datasets []struct {
		Name   string   `json:"name"`
		Shape  []int    `json:"shape"`
		Labels []string `json:"labels"`
	} `json:"datasets"`
}

func (r metadataResponse) toOutputMetadata() models.OutputMetadata {
	out := models.OutputMetadata{Datasets: make([]models.DatasetMetadata, 0, len(r.Datasets))}
	for _, d := range r.Datasets {
		out.Datasets = append(out.Datasets, models.DatasetMetadata{
			Name:   d.Name,
			Shape:  d.Shape,
			Labels: d.Labels,
		})
	}
	return out
}

// datasetResponse carries missing values as JSON null.
type datasetResponse struct {
	Shape  []int        `json:"shape"`
	Values [][]*float64 `json:"values"`
}

func (r datasetResponse) toDataset(name string, labels []string) models.Dataset {
	values := make([][]float64, len(r.Values))
	for i, row := range r.Values {
		values[i] = make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				values[i][j] = math.NaN()
				continue
			}
			values[i][j] = *v
		}
	}
	return models.Dataset{Name: name, Shape: r.Shape, Labels: labels, Values: values}
}

type simulatorResponse struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	Image   struct {
		Digest string `json:"digest"`
	} `json:"image"`
}

func (r simulatorResponse) toSimulator() models.Simulator {
	return models.Simulator{
		ID:      r.ID,
		Version: r.Version,
		Digest:  digest.Digest(r.Image.Digest),
	}
}
