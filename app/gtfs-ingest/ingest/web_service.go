package ingest

import (
	"context"
	"encoding/json"
	"github.com/OpenTransitTools/transitdelay/business/data/gtfs"
	"github.com/gorilla/mux"
	"log"
	"net/http"
)

// PositionReader retrieves the latest cached gtfs.VehiclePosition for a vehicle
type PositionReader interface {
	//LoadPosition returns nil with no error when no position is cached for vehicleId
	LoadPosition(ctx context.Context, vehicleId string) (*gtfs.VehiclePosition, error)
}

//defaultHttpHandler simple default http handler for default route
type defaultHttpHandler struct {
}

//ServeHTTP implements defaultHttpHandler http.Handler interface
func (h *defaultHttpHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Add("Application-Status", "OK")
}

//vehiclePositionHandler serves the latest cached position of a vehicle as json
type vehiclePositionHandler struct {
	log    *log.Logger
	reader PositionReader
}

//ServeHTTP implements vehiclePositionHandler's http.Handler interface
func (v *vehiclePositionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	vehicleId := mux.Vars(r)["vehicleId"]
	position, err := v.reader.LoadPosition(r.Context(), vehicleId)
	if err != nil {
		v.log.Printf("Error loading cached position for vehicle %s, error:%s", vehicleId, err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	if position == nil {
		http.Error(w, "No current position for vehicle", http.StatusNotFound)
		return
	}
	jsonData, err := json.Marshal(position)
	if err != nil {
		v.log.Printf("Error marshaling position to json: error:%v\n", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(jsonData); err != nil {
		v.log.Printf("Error writing json response: %s", err)
	}
}

// NewRouter builds the routes served by the ingest web service:
// the default status route, cached vehicle positions and prometheus metrics
func NewRouter(log *log.Logger, reader PositionReader, metrics *Metrics) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/", &defaultHttpHandler{})
	r.Handle("/vehicle-positions/{vehicleId}", &vehiclePositionHandler{log: log, reader: reader}).
		Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler())
	return r
}
