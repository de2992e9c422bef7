package postgres

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/pickle-storefront/internal/domain/cart"
	"github.com/xenking/pickle-storefront/internal/domain/order"
	"github.com/xenking/pickle-storefront/internal/domain/product"
)

// JSONB columns hold small nested documents. They are written and read with
// jx so the stored field names stay fixed regardless of Go struct tags.

func encodeArray[T any](items []T, enc func(e *jx.Encoder, v T)) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, v := range items {
		enc(&e, v)
	}
	e.ArrEnd()
	return e.Bytes()
}

func decodeArray[T any](data []byte, dec func(d *jx.Decoder, v *T) error) ([]T, error) {
	var out []T
	if len(data) == 0 {
		return out, nil
	}
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var v T
		if err := dec(d, &v); err != nil {
			return err
		}
		out = append(out, v)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode document")
	}
	return out, nil
}

func field(e *jx.Encoder, name, value string) {
	e.FieldStart(name)
	e.Str(value)
}

func fieldInt(e *jx.Encoder, name string, value int64) {
	e.FieldStart(name)
	e.Int64(value)
}

func fieldTime(e *jx.Encoder, name string, value time.Time) {
	e.FieldStart(name)
	e.Str(value.UTC().Format(time.RFC3339Nano))
}

func readStr(d *jx.Decoder, dst *string) error {
	v, err := d.Str()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func readInt(d *jx.Decoder, dst *int) error {
	v, err := d.Int()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func readInt64(d *jx.Decoder, dst *int64) error {
	v, err := d.Int64()
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

func readTime(d *jx.Decoder, dst *time.Time) error {
	s, err := d.Str()
	if err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return errors.Wrapf(err, "parse time %q", s)
	}
	*dst = t
	return nil
}

// --- product documents ---

func encodeVariants(vs []product.Variant) []byte {
	return encodeArray(vs, func(e *jx.Encoder, v product.Variant) {
		e.ObjStart()
		field(e, "packSize", string(v.PackSize))
		fieldInt(e, "price", v.Price)
		fieldInt(e, "stock", int64(v.Stock))
		e.ObjEnd()
	})
}

func decodeVariants(data []byte) ([]product.Variant, error) {
	return decodeArray(data, func(d *jx.Decoder, v *product.Variant) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "packSize":
				var s string
				err := readStr(d, &s)
				v.PackSize = product.PackSize(s)
				return err
			case "price":
				return readInt64(d, &v.Price)
			case "stock":
				return readInt(d, &v.Stock)
			default:
				return d.Skip()
			}
		})
	})
}

func encodeReviews(rs []product.Review) []byte {
	return encodeArray(rs, func(e *jx.Encoder, r product.Review) {
		e.ObjStart()
		field(e, "userId", r.UserID)
		field(e, "name", r.Name)
		fieldInt(e, "rating", int64(r.Rating))
		field(e, "comment", r.Comment)
		fieldTime(e, "createdAt", r.CreatedAt)
		e.ObjEnd()
	})
}

func decodeReviews(data []byte) ([]product.Review, error) {
	return decodeArray(data, func(d *jx.Decoder, r *product.Review) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "userId":
				return readStr(d, &r.UserID)
			case "name":
				return readStr(d, &r.Name)
			case "rating":
				return readInt(d, &r.Rating)
			case "comment":
				return readStr(d, &r.Comment)
			case "createdAt":
				return readTime(d, &r.CreatedAt)
			default:
				return d.Skip()
			}
		})
	})
}

// --- cart documents ---

func encodeCartItems(items []cart.Item) []byte {
	return encodeArray(items, func(e *jx.Encoder, it cart.Item) {
		e.ObjStart()
		field(e, "id", it.ID)
		field(e, "productId", it.ProductID)
		field(e, "productName", it.ProductName)
		field(e, "packSize", string(it.PackSize))
		fieldInt(e, "quantity", int64(it.Quantity))
		fieldInt(e, "price", it.Price)
		e.ObjEnd()
	})
}

func decodeCartItems(data []byte) ([]cart.Item, error) {
	return decodeArray(data, func(d *jx.Decoder, it *cart.Item) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "id":
				return readStr(d, &it.ID)
			case "productId":
				return readStr(d, &it.ProductID)
			case "productName":
				return readStr(d, &it.ProductName)
			case "packSize":
				var s string
				err := readStr(d, &s)
				it.PackSize = product.PackSize(s)
				return err
			case "quantity":
				return readInt(d, &it.Quantity)
			case "price":
				return readInt64(d, &it.Price)
			default:
				return d.Skip()
			}
		})
	})
}

// --- order documents ---

func encodeOrderItems(items []order.Item) []byte {
	return encodeArray(items, func(e *jx.Encoder, it order.Item) {
		e.ObjStart()
		field(e, "productId", it.ProductID)
		field(e, "name", it.Name)
		field(e, "packSize", string(it.PackSize))
		fieldInt(e, "quantity", int64(it.Quantity))
		fieldInt(e, "price", it.Price)
		e.ObjEnd()
	})
}

func decodeOrderItems(data []byte) ([]order.Item, error) {
	return decodeArray(data, func(d *jx.Decoder, it *order.Item) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "productId":
				return readStr(d, &it.ProductID)
			case "name":
				return readStr(d, &it.Name)
			case "packSize":
				var s string
				err := readStr(d, &s)
				it.PackSize = product.PackSize(s)
				return err
			case "quantity":
				return readInt(d, &it.Quantity)
			case "price":
				return readInt64(d, &it.Price)
			default:
				return d.Skip()
			}
		})
	})
}

func encodeTracking(entries []order.TrackingEntry) []byte {
	return encodeArray(entries, func(e *jx.Encoder, t order.TrackingEntry) {
		e.ObjStart()
		field(e, "status", string(t.Status))
		field(e, "note", t.Note)
		fieldTime(e, "timestamp", t.Timestamp)
		e.ObjEnd()
	})
}

func decodeTracking(data []byte) ([]order.TrackingEntry, error) {
	return decodeArray(data, func(d *jx.Decoder, t *order.TrackingEntry) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			switch key {
			case "status":
				var s string
				err := readStr(d, &s)
				t.Status = order.Status(s)
				return err
			case "note":
				return readStr(d, &t.Note)
			case "timestamp":
				return readTime(d, &t.Timestamp)
			default:
				return d.Skip()
			}
		})
	})
}

func encodeShipping(s order.ShippingInfo) []byte {
	var e jx.Encoder
	e.ObjStart()
	field(&e, "address", s.Address)
	field(&e, "city", s.City)
	field(&e, "state", s.State)
	field(&e, "country", s.Country)
	field(&e, "pinCode", s.PinCode)
	field(&e, "phoneNo", s.PhoneNo)
	e.ObjEnd()
	return e.Bytes()
}

func decodeShipping(data []byte) (order.ShippingInfo, error) {
	var s order.ShippingInfo
	if len(data) == 0 {
		return s, nil
	}
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "address":
			return readStr(d, &s.Address)
		case "city":
			return readStr(d, &s.City)
		case "state":
			return readStr(d, &s.State)
		case "country":
			return readStr(d, &s.Country)
		case "pinCode":
			return readStr(d, &s.PinCode)
		case "phoneNo":
			return readStr(d, &s.PhoneNo)
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return s, errors.Wrap(err, "decode shipping info")
	}
	return s, nil
}
