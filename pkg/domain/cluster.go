package domain

import "bloodlink/pkg/geo"

// ClusterCell is one aggregated map marker produced by the cluster engine.
// Cells are rebuilt from the current donor snapshot on every query and are
// never mutated in place.
type ClusterCell struct {
	// GridKey identifies the zoom-dependent grid cell, formatted "x:y".
	GridKey string `json:"gridKey"`
	// Centroid is the mean position of the donors in the cell.
	Centroid geo.Point `json:"centroid"`
	// DonorIDs lists the donors aggregated into this cell.
	DonorIDs []DonorID `json:"donorIds"`
	// BloodTypes lists the distinct blood types present, in stable order.
	BloodTypes []BloodType `json:"bloodTypes"`
	// Count is the number of donors in the cell; 1 marks a singleton marker.
	Count int `json:"count"`
}
