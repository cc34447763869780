package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/vladislavdragonenkov/orderdesk/internal/domain"
)

// pathID разбирает числовой параметр пути; переполнение int64 трактуется как отсутствующий ресурс.
func pathID(r *http.Request, key string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	return id, err == nil
}

func (a *api) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	order, err := req.toDomain()
	if err != nil {
		writeDomainError(w, a.logger, err)
		return
	}

	created, err := a.orders.CreateOrder(r.Context(), order)
	if err != nil {
		writeDomainError(w, a.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(created))
}

func (a *api) getOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderID")
	if !ok {
		writeDomainError(w, a.logger, domain.ErrOrderNotFound)
		return
	}

	header, err := a.orders.GetOrder(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, a.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(header))
}

func (a *api) updateOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderID")
	if !ok {
		writeDomainError(w, a.logger, domain.ErrOrderNotFound)
		return
	}

	var req updateOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	header, err := a.orders.UpdateOrder(r.Context(), orderID, req.toDomain())
	if err != nil {
		writeDomainError(w, a.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(header))
}

func (a *api) deleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderID")
	if !ok {
		writeDomainError(w, a.logger, domain.ErrOrderNotFound)
		return
	}

	if err := a.orders.DeleteOrder(r.Context(), orderID); err != nil {
		writeDomainError(w, a.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Order deleted successfully"})
}

func (a *api) addItem(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(r, "orderID")
	if !ok {
		writeDomainError(w, a.logger, domain.ErrOrderNotFound)
		return
	}

	var req orderItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	item, err := a.orders.AddItem(r.Context(), orderID, req.toDomain())
	if err != nil {
		writeDomainError(w, a.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, toItemResponse(item))
}

func (a *api) updateItem(w http.ResponseWriter, r *http.Request) {
	orderID, okOrder := pathID(r, "orderID")
	seqID, okSeq := pathID(r, "seqID")
	if !okOrder || !okSeq {
		writeDomainError(w, a.logger, domain.ErrItemNotFound)
		return
	}

	var req updateItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	item, err := a.orders.UpdateItem(r.Context(), orderID, seqID, req.toDomain())
	if err != nil {
		writeDomainError(w, a.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, toItemResponse(item))
}

func (a *api) deleteItem(w http.ResponseWriter, r *http.Request) {
	orderID, okOrder := pathID(r, "orderID")
	seqID, okSeq := pathID(r, "seqID")
	if !okOrder || !okSeq {
		writeDomainError(w, a.logger, domain.ErrItemNotFound)
		return
	}

	if err := a.orders.DeleteItem(r.Context(), orderID, seqID); err != nil {
		writeDomainError(w, a.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Item deleted successfully"})
}
