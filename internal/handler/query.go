package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dskhairnar/backend-acme/internal/model"
)

// listOptions はリソースごとの一覧クエリの許容条件。
type listOptions struct {
	// sortFields はソート可能なフィールド。先頭がデフォルト。
	sortFields []string
	// filters はクエリ文字列から受け付けるフィルタキーと、その値の検証関数。
	filters map[string]func(string) bool
}

var (
	weightListOptions = listOptions{sortFields: model.WeightSortFields}

	medicationListOptions = listOptions{
		sortFields: model.MedicationSortFields,
		filters:    map[string]func(string) bool{model.FilterActive: isBool},
	}

	shipmentListOptions = listOptions{
		sortFields: model.ShipmentSortFields,
		filters: map[string]func(string) bool{
			model.FilterStatus: func(v string) bool { return model.ShipmentStatus(v).Valid() },
		},
	}

	userListOptions = listOptions{
		sortFields: model.UserSortFields,
		filters: map[string]func(string) bool{
			model.FilterRole: func(v string) bool { return model.Role(v).Valid() },
		},
	}
)

// parseListQuery はページング・期間・ソート・フィルタのクエリパラメータを解析する。
// 不正な値はフィールド単位の詳細を持つバリデーションエラーとして返す。
func parseListQuery(r *http.Request, opts listOptions) (model.ListQuery, error) {
	values := r.URL.Query()
	fe := fieldErrors{}

	q := model.ListQuery{
		Page:      model.DefaultPage,
		Limit:     model.DefaultLimit,
		SortField: opts.sortFields[0],
		SortDesc:  true,
	}

	if v := values.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			fe.add("page", "must be a positive integer")
		} else {
			q.Page = n
		}
	}

	if v := values.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > model.MaxLimit {
			fe.add("limit", "must be an integer between 1 and "+strconv.Itoa(model.MaxLimit))
		} else {
			q.Limit = n
		}
	}

	if v, key := firstOf(values, "startDate", "start"); v != "" {
		t, _, err := parseTimestamp(v)
		if err != nil {
			fe.add(key, "must be a date (YYYY-MM-DD) or an RFC 3339 timestamp")
		} else {
			q.From = &t
		}
	}

	if v, key := firstOf(values, "endDate", "end"); v != "" {
		t, dateOnly, err := parseTimestamp(v)
		if err != nil {
			fe.add(key, "must be a date (YYYY-MM-DD) or an RFC 3339 timestamp")
		} else {
			// 終了日は含む。日付のみの指定はその日の終わりまでを対象にする。
			if dateOnly {
				t = t.AddDate(0, 0, 1)
			} else {
				t = t.Add(time.Nanosecond)
			}
			q.Until = &t
		}
	}

	if q.From != nil && q.Until != nil && !q.Until.After(*q.From) {
		fe.add("endDate", "must not be before startDate")
	}

	if v, key := firstOf(values, "sortBy", "sort"); v != "" {
		if !contains(opts.sortFields, v) {
			fe.add(key, "must be one of "+strings.Join(opts.sortFields, ", "))
		} else {
			q.SortField = v
		}
	}

	if v, key := firstOf(values, "order", "sortOrder"); v != "" {
		switch strings.ToLower(v) {
		case "asc":
			q.SortDesc = false
		case "desc":
			q.SortDesc = true
		default:
			fe.add(key, "must be asc or desc")
		}
	}

	for key, valid := range opts.filters {
		v := values.Get(key)
		if v == "" {
			continue
		}
		if !valid(v) {
			fe.add(key, "has an unsupported value")
			continue
		}
		if q.Filters == nil {
			q.Filters = map[string]string{}
		}
		q.Filters[key] = v
	}

	if err := fe.err(); err != nil {
		return model.ListQuery{}, err
	}
	return q, nil
}

// firstOf は指定キーのうち最初に値を持つものを返す。
func firstOf(values url.Values, keys ...string) (value, key string) {
	for _, k := range keys {
		if v := strings.TrimSpace(values.Get(k)); v != "" {
			return v, k
		}
	}
	return "", ""
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func isBool(v string) bool {
	_, err := strconv.ParseBool(v)
	return err == nil
}
