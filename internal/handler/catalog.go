package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/cookie-factory/internal/domain/catalog"
)

func (h *Handler) listRecipes(w http.ResponseWriter, r *http.Request) {
	cookies := h.catalog.List()
	if pattern := r.URL.Query().Get("match"); pattern != "" {
		var err error
		cookies, err = h.catalog.Explore(pattern)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
			return
		}
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, c := range cookies {
			encodeCookie(e, c)
		}
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

func encodeCookie(e *jx.Encoder, c catalog.Cookie) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(c.Recipe.String()) })
		e.Field("name", func(e *jx.Encoder) { e.Str(c.FullName) })
		e.Field("price", func(e *jx.Encoder) { e.RawStr(c.Price.StringFixed(2)) })
	})
}
