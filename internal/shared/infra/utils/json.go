package utils

import jsoniter "github.com/json-iterator/go"

// JSON es el codec de payloads de eventos, compatible con encoding/json.
var JSON = jsoniter.ConfigCompatibleWithStandardLibrary
