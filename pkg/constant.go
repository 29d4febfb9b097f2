package pkg

// default artefact file names produced by the offline pipeline. Hosts may
// override every path explicitly; these are only the conventional names.
const (
	PoiDBFileName        = "pois.db"
	SpatialIndexFileName = "pois.rstar"
	PopularityFileName   = "popularity.bin"
)

const (
	// assumed average walking speed used to size the candidate search box.
	DefaultWalkingSpeedKmh = 5.0

	// coarse conversion used when turning a walking radius into degrees.
	KmPerDegree = 111.0

	EarthRadiusKm = 6371.0088
)

// Wikidata identifiers shared by the ingest, popularity and scoring stages.
const (
	HeritagePropertyID = "P1435"
	UnescoDesignation  = "Q9259"
)

// popularity signal weights: raw = SitelinkWeight*sitelinks + UnescoBoost*unesco.
const (
	SitelinkWeight = 1.0
	UnescoBoost    = 25.0
)

const (
	DEBUG = false
)
