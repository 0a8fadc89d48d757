package tilelabel

import "errors"

var (
	ErrInvalidConfig      = errors.New("invalid config")
	ErrInvalidTileSize    = errors.New("tile size exceeds source raster")
	ErrUnsupportedCRS     = errors.New("unsupported crs")
	ErrOutputExists       = errors.New("output file already exists")
	ErrCRSMismatch        = errors.New("crs of query polygon and footprint layer differ")
	ErrMaxAttempts        = errors.New("max sampling attempts reached")
	ErrRasterOpen         = errors.New("gdal raster open err")
	ErrRasterWrite        = errors.New("gdal raster write err")
	ErrRasterRead         = errors.New("gdal raster read err")
	ErrUnsupportedDType   = errors.New("unsupported raster data type")
	ErrGdalDriverOpen     = errors.New("gdal driver open err")
	ErrGdalEmptyLayer     = errors.New("gdal vector dataset has no layer")
	ErrVoidSrid           = errors.New("gdal layer with void spatial reference")
	ErrGdalWrongGeoType   = errors.New("gdal wrong geo type")
	ErrInvalidWKT         = errors.New("invalid WKT")
	ErrInvalidProjectMode = errors.New("invalid projection mode")
)
