package flag

import (
	"os"
)

var AWS_LAMBDA_RUNTIME_API = os.Getenv("AWS_LAMBDA_RUNTIME_API")
var SST_KEY = os.Getenv("SST_KEY")
var SST_KEY_FILE = os.Getenv("SST_KEY_FILE")

// SAAS_ENV_FILE points at a dotenv file loaded before configuration is read.
var SAAS_ENV_FILE = os.Getenv("SAAS_ENV_FILE")

// InLambda reports whether the process was started by the Lambda runtime.
func InLambda() bool {
	return AWS_LAMBDA_RUNTIME_API != ""
}

func IsTrue(name string) bool {
	val, ok := os.LookupEnv(name)
	if !ok {
		return false
	}
	if val == "1" {
		return true
	}
	if val == "true" {
		return true
	}
	return false
}
