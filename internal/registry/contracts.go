package registry

// Direction names one of the two transfer directions of the bridge.
type Direction string

const (
	DirectionBaseToLinea Direction = "base-to-linea"
	DirectionLineaToBase Direction = "linea-to-base"
)

// Directions lists every supported direction in display order.
func Directions() []Direction {
	return []Direction{DirectionBaseToLinea, DirectionLineaToBase}
}

// Endpoints returns the source and destination chain slugs dir moves tokens
// between. ok is false for an unsupported direction.
func (d Direction) Endpoints() (source, destination string, ok bool) {
	switch d {
	case DirectionBaseToLinea:
		return SlugBase, SlugLinea, true
	case DirectionLineaToBase:
		return SlugLinea, SlugBase, true
	default:
		return "", "", false
	}
}

// Deployed bridge contracts.
const (
	BaseOFT       = "0xFbA669C72b588439B29F050b93500D8b645F9354"
	BaseRouter    = "0x480C0d523511dd96A65A38f36aaEF69aC2BaA82a"
	LineaAdapter  = "0x54B4E88E9775647614440Acc8B13A079277fa2A6"
	LineaDTCToken = "0xEb1fD1dBB8aDDA4fa2b5A5C4bcE34F6F20d125D2"
)

// RouteRecord is one row of the route table. Every role is spelled out even
// when two roles share an address.
type RouteRecord struct {
	Source        string `json:"source" yaml:"source"`
	Destination   string `json:"destination" yaml:"destination"`
	Token         string `json:"token" yaml:"token"`
	Spender       string `json:"spender" yaml:"spender"`
	QuoteContract string `json:"quote_contract" yaml:"quote_contract"`
	SendContract  string `json:"send_contract" yaml:"send_contract"`
	PeerReader    string `json:"peer_reader" yaml:"peer_reader"`
}

// On Base the OFT is the token and plays every protocol role. On Linea the
// canonical token is locked by an adapter that quotes, sends and is approved.
var defaultRoutes = map[Direction]RouteRecord{
	DirectionBaseToLinea: {
		Source:        SlugBase,
		Destination:   SlugLinea,
		Token:         BaseOFT,
		Spender:       BaseOFT,
		QuoteContract: BaseOFT,
		SendContract:  BaseOFT,
		PeerReader:    BaseOFT,
	},
	DirectionLineaToBase: {
		Source:        SlugLinea,
		Destination:   SlugBase,
		Token:         LineaDTCToken,
		Spender:       LineaAdapter,
		QuoteContract: LineaAdapter,
		SendContract:  LineaAdapter,
		PeerReader:    LineaAdapter,
	},
}

// DefaultRoutes returns a copy of the built-in route table.
func DefaultRoutes() map[Direction]RouteRecord {
	out := make(map[Direction]RouteRecord, len(defaultRoutes))
	for k, v := range defaultRoutes {
		out[k] = v
	}
	return out
}
