package types

import "errors"

// ErrUnknownVehicle транспорт не найден ни в кэше, ни в справочнике
var ErrUnknownVehicle = errors.New("транспорт не найден")
