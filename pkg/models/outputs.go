package models

import (
	"encoding/json"
	"fmt"
)

// OutputMetadata is the catalog of datasets produced by a run.
type OutputMetadata struct {
	Datasets []DatasetMetadata `json:"Datasets"`
}

// Dataset returns the metadata of the named dataset.
func (m *OutputMetadata) Dataset(name string) (DatasetMetadata, bool) {
	if m == nil {
		return DatasetMetadata{}, false
	}
	for _, d := range m.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return DatasetMetadata{}, false
}

// DatasetNames returns the dataset names in catalog order.
func (m *OutputMetadata) DatasetNames() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.Datasets))
	for _, d := range m.Datasets {
		names = append(names, d.Name)
	}
	return names
}

// DatasetMetadata describes one named output table. Each row is a variable.
type DatasetMetadata struct {
	Name   string   `json:"Name"`
	Shape  []int    `json:"Shape"`
	Labels []string `json:"Labels"`
}

// Dataset holds the values of one output table, one row per variable.
type Dataset struct {
	Name   string      `json:"Name"`
	Shape  []int       `json:"Shape"`
	Labels []string    `json:"Labels,omitempty"`
	Values [][]float64 `json:"Values"`
}

// Validate checks that the values agree with the declared shape.
func (d Dataset) Validate() error {
	if len(d.Shape) != 2 {
		return fmt.Errorf("dataset %s: expected a 2-dimensional shape, got %v", d.Name, d.Shape)
	}
	if len(d.Values) != d.Shape[0] {
		return fmt.Errorf("dataset %s: shape %v declares %d rows but %d were returned",
			d.Name, d.Shape, d.Shape[0], len(d.Values))
	}
	for i, row := range d.Values {
		if len(row) != d.Shape[1] {
			return fmt.Errorf("dataset %s: row %d has %d columns, shape %v", d.Name, i, len(row), d.Shape)
		}
	}
	return nil
}

// MarshalJSON encodes missing values the same way as Scores.
func (d Dataset) MarshalJSON() ([]byte, error) {
	type alias Dataset
	values := make([]Scores, len(d.Values))
	for i, row := range d.Values {
		values[i] = Scores(row)
	}
	return json.Marshal(struct {
		alias
		Values []Scores `json:"Values"`
	}{alias: alias(d), Values: values})
}

func (d *Dataset) UnmarshalJSON(data []byte) error {
	type alias Dataset
	aux := struct {
		*alias
		Values []Scores `json:"Values"`
	}{alias: (*alias)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.Values = make([][]float64, len(aux.Values))
	for i, row := range aux.Values {
		d.Values[i] = row
	}
	return nil
}
