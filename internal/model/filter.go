package model

// SortKey задаёт порядок сортировки активных лотов.
type SortKey string

const (
	SortByEndTime     SortKey = "EndTime"
	SortByPriceAsc    SortKey = "PriceAsc"
	SortByPriceDesc   SortKey = "PriceDesc"
	SortByBeautyScore SortKey = "BeautyScore"
)

// DefaultPageSize задаёт размер страницы каталога по умолчанию.
const DefaultPageSize = 12

// MaxPageSize ограничивает размер страницы каталога.
const MaxPageSize = 100

// ParseSortKey возвращает ключ сортировки, по умолчанию сортировка по времени окончания.
func ParseSortKey(s string) SortKey {
	switch SortKey(s) {
	case SortByPriceAsc, SortByPriceDesc, SortByBeautyScore:
		return SortKey(s)
	}
	return SortByEndTime
}

// ListingFilter описывает параметры выборки активных лотов.
type ListingFilter struct {
	Network  string
	Category string
	Sort     SortKey
	Limit    int
}

// Normalize приводит фильтр к допустимым значениям.
func (f ListingFilter) Normalize() ListingFilter {
	f.Sort = ParseSortKey(string(f.Sort))
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	return f
}
